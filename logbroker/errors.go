package logbroker

import "errors"

// errSendChannelClosed is the failure reported when an AsyncResult is
// closed without ever being fulfilled (spec §4.1: "the core treats a
// closed/never-fulfilled result as a failure with reason 'send response
// channel closed'").
var errSendChannelClosed = errors.New("logbroker: send response channel closed")
