// Package process reaps browser processes that outlive their connection.
//
// A crashed or hung Chrome can leave renderer and GPU helpers behind; killing
// the whole process group (or tree on Windows) keeps a long-running server
// from accumulating zombies across browser restarts.
package process
