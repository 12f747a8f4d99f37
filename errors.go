package chatsearch

import "fmt"

// DatabaseError is the base error type shared by chatsearch's three error
// kinds: filesystem/schema failures opening a Database, failures inside
// the writer's full-text adapter, and failures obtaining a read handle.
type DatabaseError struct {
	Op  string // operation that failed, e.g. "open", "commit", "get_connection"
	Err error  // underlying error
}

func (e DatabaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op
}

func (e DatabaseError) Unwrap() error { return e.Err }

// DatabaseOpenError is raised by New when the storage directory is
// unusable, the relational schema can't be initialized, or the full-text
// index can't be opened or created. Fatal to the handle.
type DatabaseOpenError struct {
	DatabaseError
	Path string
}

// IndexError is raised when the full-text adapter fails during add,
// commit, or reload. AddBacklogEvents returns it for a failed backlog
// batch. A live event whose document fails to stage is only logged by the
// writer; its row stays in the relational store without an index document.
type IndexError struct {
	DatabaseError
}

// ConnectionError is raised when a read-only handle to the relational
// store cannot be obtained or a query against it fails.
type ConnectionError struct {
	DatabaseError
}
