package mandate

// Op names a lifecycle operation.
type Op string

const (
	OpConvert Op = "convert"
	OpRevoke  Op = "revoke"
	OpScreen  Op = "risk-screen"
	OpExecute Op = "execute"
)

// InitialStatus is the status a freshly issued mandate of type t starts in.
// An intent is an approved consent awaiting use; carts and payment
// instructions are issued documents.
func InitialStatus(t Type) Status {
	if t == TypeIntent {
		return StatusActive
	}
	return StatusIssued
}

// SettlementOutcome is the status reported by a settlement rail.
type SettlementOutcome string

const (
	OutcomeSettled SettlementOutcome = "SETTLED"
	OutcomePending SettlementOutcome = "PENDING"
	OutcomeFailed  SettlementOutcome = "FAILED"
)

// StatusAfterSettlement maps a rail outcome onto the mandate status it
// produces. A settled payment marks the mandate EXECUTED; pending and failed
// carry over by name.
func StatusAfterSettlement(o SettlementOutcome) (Status, bool) {
	switch o {
	case OutcomeSettled:
		return StatusExecuted, true
	case OutcomePending:
		return StatusPending, true
	case OutcomeFailed:
		return StatusFailed, true
	}
	return "", false
}

// CheckConvert returns an InvalidStateError unless m is a live intent.
func CheckConvert(m *Mandate) error {
	if m.MandateType != TypeIntent || !m.Status.Live() {
		return m.invalid(OpConvert)
	}
	return nil
}

// CheckRevoke returns an InvalidStateError unless m can still be withdrawn.
// Revoked, executed, settled and failed mandates are final.
func CheckRevoke(m *Mandate) error {
	switch m.Status {
	case StatusActive, StatusIssued, StatusPending:
		return nil
	}
	return m.invalid(OpRevoke)
}

// CheckScreen returns an InvalidStateError unless m is live.
func CheckScreen(m *Mandate) error {
	if !m.Status.Live() {
		return m.invalid(OpScreen)
	}
	return nil
}

// CheckExecute returns an InvalidStateError unless m is a live intent or
// payment mandate.
func CheckExecute(m *Mandate) error {
	if !Payable(m) {
		return m.invalid(OpExecute)
	}
	return nil
}

// Payable reports whether m can be sent to a settlement rail.
func Payable(m *Mandate) bool {
	if m.MandateType != TypeIntent && m.MandateType != TypePayment {
		return false
	}
	return m.Status.Live()
}

// Convert turns a live intent into an issued payment mandate.
func Convert(m *Mandate) error {
	if err := CheckConvert(m); err != nil {
		return err
	}
	m.MandateType = TypePayment
	m.Status = StatusIssued
	return nil
}

// Revoke moves m to REVOKED.
func Revoke(m *Mandate) error {
	if err := CheckRevoke(m); err != nil {
		return err
	}
	m.Status = StatusRevoked
	return nil
}

// ApplySettlement records the rail outcome on a payable mandate.
func ApplySettlement(m *Mandate, o SettlementOutcome) error {
	if err := CheckExecute(m); err != nil {
		return err
	}
	next, ok := StatusAfterSettlement(o)
	if !ok {
		return &ValidationError{Field: "status", Reason: "unknown settlement outcome " + string(o)}
	}
	m.Status = next
	return nil
}

func (m *Mandate) invalid(op Op) error {
	return &InvalidStateError{MandateID: m.MandateID, Op: op, Type: m.MandateType, Status: m.Status}
}
