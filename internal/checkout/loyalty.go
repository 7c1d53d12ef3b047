package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"commerce-gateway/internal/crm"
)

var (
	errNoMembership = errors.New("no active loyalty membership")
	errNoCurrency   = errors.New("no active loyalty currency")
)

type memberRecord struct {
	ID        string `json:"Id"`
	ProgramID string `json:"ProgramId"`
}

// Points returns the loyalty points earned for total at rate, rounded down.
func Points(total, rate decimal.Decimal) int64 {
	return total.Mul(rate).Floor().IntPart()
}

// accrueLoyalty credits points to the account's active loyalty member.
func (s *Service) accrueLoyalty(ctx context.Context, st *state) error {
	points := Points(st.req.Total, s.cfg.LoyaltyRate)
	if points < 1 {
		return nil
	}

	contactIDs, err := s.accountContacts(ctx, st)
	if err != nil {
		return err
	}
	if len(contactIDs) == 0 {
		return errNoMembership
	}

	members, err := crm.Query[memberRecord](ctx, s.crm, st.token, fmt.Sprintf(
		"SELECT Id, ProgramId FROM LoyaltyProgramMember WHERE ContactId IN %s AND MemberStatus = 'Active' LIMIT 1",
		crm.QuoteList(contactIDs),
	))
	if err != nil {
		return err
	}
	if len(members.Records) == 0 {
		return errNoMembership
	}
	member := members.Records[0]

	currencies, err := crm.Query[crm.Record](ctx, s.crm, st.token, fmt.Sprintf(
		"SELECT Id FROM LoyaltyProgramCurrency WHERE LoyaltyProgramId = %s AND IsActive = true LIMIT 1",
		crm.Quote(member.ProgramID),
	))
	if err != nil {
		return err
	}
	if len(currencies.Records) == 0 {
		return errNoCurrency
	}

	_, err = s.crm.Create(ctx, st.token, objectLoyaltyLedger, map[string]interface{}{
		"LoyaltyProgramMemberId":   member.ID,
		"LoyaltyProgramCurrencyId": currencies.Records[0].ID,
		"Points":                   points,
		"EventType":                "Credit",
		"ActivityDate":             st.today.Format(dateLayout),
	})
	if err != nil {
		return err
	}

	st.pointsEarned = points
	s.logger.InfoContext(ctx, "loyalty points credited",
		slog.String("order_id", st.orderID),
		slog.String("member_id", member.ID),
		slog.Int64("points", points),
	)
	return nil
}

// accountContacts returns the checkout's contact, or all of the account's contacts.
func (s *Service) accountContacts(ctx context.Context, st *state) ([]string, error) {
	if st.req.ContactID != "" {
		return []string{st.req.ContactID}, nil
	}

	result, err := crm.Query[crm.Record](ctx, s.crm, st.token, fmt.Sprintf(
		"SELECT Id FROM Contact WHERE AccountId = %s", crm.Quote(st.accountID),
	))
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(result.Records))
	for i, rec := range result.Records {
		ids[i] = rec.ID
	}
	return ids, nil
}
