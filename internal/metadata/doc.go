// Package metadata defines the gallery metadata record written into archives
// and the Provider interface used to obtain it.
//
// Archive filenames carry the gallery id as a six digit bracketed prefix,
// for example "[123456]Some Title.zip". ExtractID enforces that convention;
// files that do not follow it are skipped rather than failed.
//
// HTTPProvider fetches records from a JSON gallery API. Requests are paced
// with a token bucket so a large task does not hammer the remote service.
package metadata
