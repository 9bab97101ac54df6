// Package services defines the [Jukebox] interface for the NFC jukebox and implements it over HTTP in [DeviceService].
//
// # Endpoints
//
// The appliance exposes a small JSON surface:
//   - GET /songs, GET /mappings : library listings, an absent body is an empty list
//   - GET /tagid : the tag on the reader, empty when none is present
//   - POST /addmapping, POST /delmapping : success is HTTP 200
//   - POST /upload : multipart field "data", success is {"result":"OK"}
//   - POST /renamefile, POST /deletefile : {"result":"OK"} or a result code
//   - GET /download?file= : raw audio bytes
//
// # Rate Limiting and Timeouts
//
// Every request first waits on a [rate.Limiter] so a busy client cannot starve the device.
// JSON calls use the request timeout; uploads and downloads use the per-file transfer timeout.
// A zero timeout disables the deadline.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAPIRequest] : network failure or unexpected HTTP status
//   - [shared.ErrTimeout] : a deadline expired
//   - [shared.ErrNoTag] : no tag on the reader
//   - [shared.ErrInvalidFilename] : name does not end in .mp3, no request is sent
//
// Failures the device reports in its body are returned as [*ResultError], which unwraps to
// [shared.ErrFileExists] (EXISTS), [shared.ErrFileInUse] (INUSE) or [shared.ErrDeviceFailure].
package services
