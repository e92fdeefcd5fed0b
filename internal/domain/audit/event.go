// Package audit defines the write-only audit trail contract.
// Services record one Event per successful operation, inside the operation's
// transaction, so a rolled back operation leaves no audit entry behind.
package audit

import (
	"context"
	"time"

	appctx "columbarium/internal/core/context"
)

// Action names recorded in the audit trail.
type Action string

const (
	ActionCreateSale              Action = "create_sale"
	ActionCreateBulkSale          Action = "create_bulk_sale"
	ActionCancelSale              Action = "cancel_sale"
	ActionRegisterPayment         Action = "register_payment"
	ActionRegisterMaintenance     Action = "register_maintenance"
	ActionRegisterSuccession      Action = "register_succession"
	ActionManualTransfer          Action = "manual_transfer"
	ActionUpdateBeneficiaries     Action = "update_beneficiaries"
	ActionMarkBeneficiaryDeceased Action = "mark_beneficiary_deceased"
	ActionCreateCustomer          Action = "create_customer"
	ActionUpdateCustomer          Action = "update_customer"
	ActionDeactivateCustomer      Action = "deactivate_customer"
	ActionCreateNiche             Action = "create_niche"
	ActionDisableNiche            Action = "disable_niche"
	ActionEnableNiche             Action = "enable_niche"
	ActionUpdateNichePrice        Action = "update_niche_price"
	ActionUpdateNicheType         Action = "update_niche_type"
	ActionActivateCustomer        Action = "activate_customer"
)

// Modules group actions by functional area.
const (
	ModuleSales       = "sales"
	ModulePayments    = "payments"
	ModuleSuccession  = "succession"
	ModuleNiches      = "niches"
	ModuleCustomers   = "customers"
	ModuleBeneficiary = "beneficiaries"
)

// Event is one audit trail entry.
type Event struct {
	Action       Action         `json:"action"`
	Module       string         `json:"module"`
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId"`
	Details      map[string]any `json:"details,omitempty"`
	ActorID      string         `json:"actorId,omitempty"`
	ActorName    string         `json:"actorName,omitempty"`
	IP           string         `json:"ip,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	Status       string         `json:"status"`
	OccurredAt   time.Time      `json:"occurredAt"`
}

// Sink persists audit events.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// NewEvent builds a successful event, enriched with the actor and request origin from ctx.
func NewEvent(ctx context.Context, action Action, module, resourceType, resourceID string, details map[string]any) Event {
	e := Event{
		Action:       action,
		Module:       module,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		Status:       "success",
		OccurredAt:   time.Now().UTC(),
	}
	if u := appctx.GetUser(ctx); u != nil {
		e.ActorID = u.UserID
		e.ActorName = u.Username
	}
	origin := appctx.GetOrigin(ctx)
	e.IP = origin.IP
	e.UserAgent = origin.UserAgent
	return e
}

// NopSink discards events.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(context.Context, Event) error { return nil }

// MemorySink keeps events in memory. Used by tests.
type MemorySink struct {
	Events []Event
	Err    error
}

// Record implements Sink.
func (m *MemorySink) Record(_ context.Context, e Event) error {
	if m.Err != nil {
		return m.Err
	}
	m.Events = append(m.Events, e)
	return nil
}

// Actions lists recorded actions in order.
func (m *MemorySink) Actions() []Action {
	out := make([]Action, len(m.Events))
	for i, e := range m.Events {
		out[i] = e.Action
	}
	return out
}
