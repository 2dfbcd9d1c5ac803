// Package submit is the copy/deletion submission interface (§4.7): it
// turns a policy decision into a subscribe/delete XML payload, batches
// requests by site up to the subscription chunk size, and tracks
// operation status. Read-only and test modes never perform the remote
// side effect.
package submit
