/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal ledger model from the external API contract.

ENVELOPE:
  Every response is wrapped in {status, message, data}. Errors carry the
  same envelope with a null data field.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and services, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - seed/types.go: The domain types these mirror
*/
package api

import (
	"time"

	"github.com/greenride/seed-engine/accrual"
	"github.com/greenride/seed-engine/seed"
)

// =============================================================================
// ENVELOPE
// =============================================================================

// Envelope wraps every API response.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// EarnRequest is the drive event submitted by the scoring pipeline.
// It embeds the accrual event directly; the user id travels in the
// X-User-Id header, not the body.
type EarnRequest struct {
	DriveID        string                   `json:"driveId,omitempty"`
	DrivingTime    *int                     `json:"drivingTime,omitempty"`
	CompositeScore *int                     `json:"compositeScore,omitempty"`
	LastProfile    *accrual.BehaviorProfile `json:"lastProfile,omitempty"`
	CurrentProfile *accrual.BehaviorProfile `json:"currentProfile,omitempty"`
}

// UseRequest spends seeds from the caller's balance.
type UseRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description,omitempty"`
}

// ByDriveRequest asks for seed totals of specific drives.
type ByDriveRequest struct {
	DriveIDs []string `json:"driveIds"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// EntryDTO is one ledger entry in API responses.
type EntryDTO struct {
	ID              string `json:"id"`
	UserID          string `json:"userId"`
	Amount          int64  `json:"amount"`
	Type            string `json:"type"`
	Reason          string `json:"reason"`
	Description     string `json:"description"`
	BalanceSnapshot int64  `json:"balanceSnapshot"`
	DriveID         string `json:"driveId,omitempty"`
	CreatedAt       string `json:"createdAt"`
}

func toEntryDTO(e seed.LedgerEntry) EntryDTO {
	return EntryDTO{
		ID:              e.DisplayID(),
		UserID:          e.UserID,
		Amount:          e.Amount,
		Type:            string(e.Type),
		Reason:          string(e.Category()),
		Description:     e.Description,
		BalanceSnapshot: e.BalanceSnapshot,
		DriveID:         e.DriveID,
		CreatedAt:       e.CreatedAt.Format(time.RFC3339),
	}
}

func toEntryDTOs(entries []seed.LedgerEntry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

// EarnResponseDTO reports the grants of one drive event.
type EarnResponseDTO struct {
	Granted []EntryDTO `json:"granted"`
	Total   int64      `json:"total"`
}

// BalanceDTO is a user's current balance.
type BalanceDTO struct {
	UserID  string `json:"userId"`
	Balance int64  `json:"balance"`
}

// PageDTO is a paginated listing.
type PageDTO struct {
	Content []EntryDTO    `json:"content"`
	Page    seed.PageInfo `json:"pageInfo"`
}
