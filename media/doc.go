// Package media runs image crops and video frame extraction as Transloadit
// assemblies.
//
// An assembly is created with a form-encoded params document, then its
// status URL is polled until it completes, aborts or the poll budget runs
// out.
package media
