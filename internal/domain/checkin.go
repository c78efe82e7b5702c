package domain

import "time"

// ResultCode is the machine-readable outcome of a scan or manual code validation.
type ResultCode string

const (
	CodeCheckInOK        ResultCode = "CHECK_IN_OK"
	CodeAlreadyCheckedIn ResultCode = "ALREADY_CHECKED_IN"

	CodeSignatureInvalid ResultCode = "QR_SIGNATURE_INVALID"
	CodeExpired          ResultCode = "QR_EXPIRED"
	CodeFormatInvalid    ResultCode = "QR_FORMAT_INVALID"
	CodeInvalid          ResultCode = "QR_INVALID"

	CodeWrongEvent         ResultCode = "WRONG_EVENT"
	CodeTicketCodeMismatch ResultCode = "TICKET_CODE_MISMATCH"
	CodeNotApproved        ResultCode = "NOT_APPROVED_FOR_THIS_EVENT"

	CodeEventNotFound  ResultCode = "EVENT_NOT_FOUND"
	CodeUserNotFound   ResultCode = "USER_NOT_FOUND"
	CodeTicketNotFound ResultCode = "TICKET_NOT_FOUND"
)

// Success reports whether the code means the bearer may enter.
func (c ResultCode) Success() bool {
	return c == CodeCheckInOK || c == CodeAlreadyCheckedIn
}

// ValidationResult is returned for every scan; business failures are results, not errors.
type ValidationResult struct {
	Valid       bool
	Code        ResultCode
	TicketID    string
	EventID     string
	EventTitle  string
	CheckedInAt *time.Time
	PersonID    string
	PersonName  string
	PersonEmail string
}

// Reject builds a failed result carrying only the code.
func Reject(code ResultCode) ValidationResult {
	return ValidationResult{Valid: false, Code: code}
}

// ScanMethod tells how the credential reached the engine.
type ScanMethod string

const (
	ScanMethodQR   ScanMethod = "qr"
	ScanMethodCode ScanMethod = "code"
)

// ScanAudit describes one scan attempt for the audit trail.
type ScanAudit struct {
	Method      ScanMethod
	Code        ResultCode
	TicketID    string
	EventID     string
	OrganizerID string
	At          time.Time
}
