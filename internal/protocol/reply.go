package protocol

import (
	"errors"
	"fmt"
	"io"

	"github.com/MrSnakeDoc/npdstracker/internal/domain"
)

// Reply status codes.
const (
	CodeOK         = 200
	CodeNPDSOK     = 202
	CodeBadRequest = 400
	CodeForbidden  = 403
	CodeNotFound   = 404
)

// NoEntries closes a SHARE reply that carries no record.
const NoEntries = "no-entries"

// rtfm is sent for any line the tracker cannot make sense of.
const rtfm = " Please check out the protocol before telnetting to the tracker (http://npds.free.fr/)"

var errMessages = map[domain.Err]string{
	domain.ErrDuplicateKey:       " host already exists in list",
	domain.ErrNotRegistered:      " host is unknown",
	domain.ErrInvalidHost:        " host is invalid (doesn't resolve, check your client configuration)",
	domain.ErrPrivateHost:        " host address is for private network (check your client configuration)",
	domain.ErrWeirdPort:          " Weird port (not an integer)",
	domain.ErrWeirdPortValue:     " Weird port (not within 1-65535)",
	domain.ErrUnsupportedVersion: " This version of the protocol is not supported by this tracker",
	domain.ErrBadSyntax:          rtfm,
	domain.ErrForbidden:          " server not sharing records",
	domain.ErrIncorrectPassword:  " Incorrect admin password",
}

func reason(code int) string {
	switch code {
	case CodeOK, CodeNPDSOK:
		return "OK"
	case CodeBadRequest:
		return "Bad Request"
	case CodeForbidden:
		return "Forbidden"
	case CodeNotFound:
		return "File Not Found"
	default:
		return "Undefined status"
	}
}

// writeCode writes a status line: "<code> <reason><msg>\r\n". msg carries its
// own leading space when present.
func writeCode(w io.Writer, code int, msg string) {
	fmt.Fprintf(w, "%d %s%s\r\n", code, reason(code), msg)
}

// replyFor maps a command failure to its status code and message.
func replyFor(err error) (int, string) {
	var e domain.Err
	if !errors.As(err, &e) {
		return CodeBadRequest, rtfm
	}
	code := CodeBadRequest
	if e == domain.ErrForbidden {
		code = CodeForbidden
	}
	if msg, ok := errMessages[e]; ok {
		return code, msg
	}
	return code, rtfm
}

// writeError writes the reply for err. A Forbidden reply is followed by the
// no-entries marker.
func writeError(w io.Writer, err error) int {
	code, msg := replyFor(err)
	writeCode(w, code, msg)
	if code == CodeForbidden {
		fmt.Fprintf(w, "%s\r\n", NoEntries)
	}
	return code
}
