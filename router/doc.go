// Package router merges the catalogs of all backend connections into one namespace
// and routes tool calls and resource reads to the owning backend.
//
// Tools are exposed as SanitizeToolName(server + "_" + tool); resources as server + "." + uri.
package router
