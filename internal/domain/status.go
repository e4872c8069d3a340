package domain

// Status is the canonical order lifecycle state. Legacy records carry two
// redundant fields, a coarse `status` and a fine `orderStatus`; Status
// collapses the pair into one enum. ResolveStatus maps legacy pairs in,
// Coarse/Fine map back out so old readers keep working.
type Status string

const (
	StatusUnknown        Status = ""
	StatusPending        Status = "pending"
	StatusAccepted       Status = "accepted"
	StatusPreparing      Status = "preparing"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusPickedUp       Status = "picked_up"
	StatusDelivered      Status = "delivered"
	StatusRejected       Status = "rejected"
)

// Legacy coarse status values as persisted by older writers.
const (
	coarsePending        = "pending"
	coarseInProgress     = "in_progress"
	coarseAssignedDriver = "assigned_driver"
	coarsePickedUp       = "picked_up"
	coarseDelivered      = "delivered"
	coarseRejected       = "rejected"
)

// ResolveStatus combines the two legacy fields into the canonical status.
// A bare in_progress without the accepted flag means the restaurant has not
// acted yet and resolves to pending, so it never surfaces as actionable.
func ResolveStatus(coarse, fine string) Status {
	switch coarse {
	case coarsePending:
		return StatusPending
	case coarseInProgress:
		if fine == string(StatusAccepted) {
			return StatusAccepted
		}
		return StatusPending
	case coarseAssignedDriver:
		if fine == string(StatusReadyForPickup) {
			return StatusReadyForPickup
		}
		return StatusPreparing
	case coarsePickedUp:
		return StatusPickedUp
	case coarseDelivered:
		return StatusDelivered
	case coarseRejected:
		return StatusRejected
	case "":
		return StatusUnknown
	}

	// Records written by this implementation may carry a canonical value in
	// the coarse slot; accept it as-is.
	switch s := Status(coarse); s {
	case StatusAccepted, StatusPreparing, StatusReadyForPickup:
		return s
	}
	return StatusUnknown
}

// Coarse returns the legacy top-level status field for s.
func (s Status) Coarse() string {
	switch s {
	case StatusPending:
		return coarsePending
	case StatusAccepted:
		return coarseInProgress
	case StatusPreparing, StatusReadyForPickup:
		return coarseAssignedDriver
	case StatusPickedUp:
		return coarsePickedUp
	case StatusDelivered:
		return coarseDelivered
	case StatusRejected:
		return coarseRejected
	}
	return ""
}

// Fine returns the legacy secondary status field for s; empty when the
// coarse field alone is authoritative.
func (s Status) Fine() string {
	switch s {
	case StatusAccepted, StatusPreparing, StatusReadyForPickup, StatusPickedUp, StatusDelivered:
		return string(s)
	}
	return ""
}

// Terminal reports whether s admits no further transitions. Terminal orders
// are retained as history, never deleted.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusRejected
}

// Role identifies the actor performing an operation.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleRestaurant Role = "restaurant"
	RoleDriver     Role = "driver"
	RoleAdmin      Role = "admin"
)
