package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"gatepass/credential"
)

// Credential generation is retried on a collision; past this many attempts
// the whole issuance is rejected.
const maxCredentialAttempts = 3

type issuedCredential struct {
	uniqueID   string
	secret     []byte
	manualCode string
}

// issueCredentialed runs the generate / collision-check / persist loop
// shared by registrations and tickets. The persist callback owns atomicity;
// a unique-index violation from a concurrently inserted credential just
// triggers a fresh one.
func issueCredentialed(
	ctx context.Context,
	querier Querier,
	prefix string,
	traceIdAttr slog.Attr,
	persist func(issuedCredential) (int64, error),
) (int64, issuedCredential, error) {
	var lastErr error

	for attempt := 0; attempt < maxCredentialAttempts; attempt++ {
		cred, err := newIssuedCredential(prefix)
		if err != nil {
			return 0, issuedCredential{}, err
		}

		exists, err := querier.CredentialExists(ctx, cred.uniqueID, cred.manualCode, credential.HashSecret(cred.secret))
		if err != nil {
			return 0, issuedCredential{}, err
		}
		if exists {
			slog.WarnContext(ctx, "credential collision, regenerating", traceIdAttr)
			lastErr = fmt.Errorf("credential collision")
			continue
		}

		id, err := persist(cred)
		if err != nil {
			if isUniqueViolation(err) {
				slog.WarnContext(ctx, "credential unique violation, regenerating", traceIdAttr)
				lastErr = err
				continue
			}
			return 0, issuedCredential{}, err
		}

		return id, cred, nil
	}

	return 0, issuedCredential{}, fmt.Errorf("credential generation exhausted: %w", lastErr)
}

func newIssuedCredential(prefix string) (issuedCredential, error) {
	secret, err := credential.NewSecret()
	if err != nil {
		return issuedCredential{}, err
	}

	manualCode, err := credential.NewManualCode()
	if err != nil {
		return issuedCredential{}, err
	}

	return issuedCredential{
		uniqueID:   credential.NewUniqueID(prefix),
		secret:     secret,
		manualCode: manualCode,
	}, nil
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
