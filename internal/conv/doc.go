// Package conv collects tiny helper functions that are not part of the public API
// but aid internal conversions.
//
// At the moment it only exposes `AsInt64` which coerces a decoded JSON-RPC id
// (number, numeric string or raw JSON) into a plain `int64`.
package conv
