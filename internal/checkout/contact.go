package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"commerce-gateway/internal/crm"
	"commerce-gateway/internal/model"
)

const objectAccount = "Account"

// EnsureContact returns the contact registered under req.Email, creating it
// (and an account for it, when none is given) if there is none.
// Contacts are never duplicated.
func (s *Service) EnsureContact(ctx context.Context, token string, req *model.ContactRequest) (*model.ContactResult, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, model.NewMalformedRequest("Missing or invalid email")
	}
	if strings.TrimSpace(req.LastName) == "" {
		return nil, model.NewMalformedRequest("Missing lastName")
	}
	if token == "" {
		return nil, model.NewAuthFailure("CRM token required to create contacts", nil)
	}

	existing, err := crm.Query[contactRecord](ctx, s.crm, token, fmt.Sprintf(
		"SELECT Id, AccountId FROM Contact WHERE Email = %s LIMIT 1", crm.Quote(email),
	))
	if err != nil {
		return nil, err
	}
	if len(existing.Records) > 0 {
		c := existing.Records[0]
		return &model.ContactResult{ContactID: c.ID, AccountID: c.AccountID}, nil
	}

	accountID := req.AccountID
	if accountID == "" {
		name := strings.TrimSpace(req.FirstName + " " + req.LastName)
		accountID, err = s.crm.Create(ctx, token, objectAccount, map[string]interface{}{"Name": name})
		if err != nil {
			return nil, err
		}
	}

	fields := map[string]interface{}{
		"LastName":  req.LastName,
		"Email":     email,
		"AccountId": accountID,
	}
	if req.FirstName != "" {
		fields["FirstName"] = req.FirstName
	}
	id, err := s.crm.Create(ctx, token, objectContact, fields)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "contact created",
		slog.String("contact_id", id),
		slog.String("account_id", accountID),
	)
	return &model.ContactResult{ContactID: id, AccountID: accountID, Created: true}, nil
}
