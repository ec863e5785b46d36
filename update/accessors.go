package update

import "secureiap/image"

// State returns the session's current position in the receive-side state
// machine.
func (sess *Session) State() State { return sess.state }

// Header returns the parsed input header, valid once StateRecvData or later
// has been reached.
func (sess *Session) Header() image.Header { return sess.header }
