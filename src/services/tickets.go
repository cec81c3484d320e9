package services

import (
	"crypto/rand"
	"encoding/hex"
	"eventix/src/models"
	"eventix/src/store"
	"eventix/src/types"
	"fmt"
	"strings"
)

type CodeGenerator func() (string, error)

const maxCodeAttempts = 5

func GenerateTicketCode() (string, error) {
	bytes := make([]byte, 6)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("error generating ticket code: %w", err)
	}
	return "TIX-" + strings.ToUpper(hex.EncodeToString(bytes)), nil
}

type TicketIssuer struct {
	codes CodeGenerator
}

func NewTicketIssuer(codes CodeGenerator) *TicketIssuer {
	return &TicketIssuer{codes: codes}
}

// Issue creates one ticket per seat of a confirmed transaction. A
// transaction that already has tickets gets them back untouched.
func (i *TicketIssuer) Issue(tx store.Tx, txn *models.Transaction) ([]models.Ticket, error) {
	existing, err := tx.ListTickets(txn.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}
	tickets := make([]models.Ticket, 0, txn.Quantity)
	for n := 0; n < txn.Quantity; n++ {
		code, err := i.uniqueCode(tx)
		if err != nil {
			return nil, err
		}
		ticket := models.Ticket{
			TicketCode:    code,
			EventID:       txn.EventID,
			UserID:        txn.UserID,
			TransactionID: txn.ID,
		}
		if err := tx.CreateTicket(&ticket); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func (i *TicketIssuer) uniqueCode(tx store.Tx) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := i.codes()
		if err != nil {
			return "", err
		}
		_, err = tx.FindTicketByCode(code)
		if types.IsKind(err, types.ERR_NOT_FOUND) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("could not generate a unique ticket code after %d attempts", maxCodeAttempts)
}
