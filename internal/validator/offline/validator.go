// Package offline implements the offline validator: reaching an access Decision using only
// the local catalog collaborator, for use when the online peer is
// unreachable (or as the device's only mode, if configured so).
package offline

import (
	"context"
	"time"

	"github.com/henryproto/turnstile-emu/internal/catalog"
	"github.com/henryproto/turnstile-emu/internal/protocol/henry/command"
)

const (
	denyHoldSeconds  = 5
	grantHoldSeconds = 3

	msgCardNotEnrolled  = "Cartão não cadastrado"
	msgUserInactive     = "Usuário inativo"
	msgOutsideValidity  = "Fora do período de validade"
	msgMethodNotAllowed = "Método não permitido"
	msgPassback         = "Passback"
)

// NowFunc lets tests substitute a fixed clock.
type NowFunc func() time.Time

// Validator is the offline validator.
type Validator struct {
	Catalog catalog.Catalog

	// AntiPassbackWindow is TEMPO_PASSBACK: how recently a grant in the
	// same direction must have occurred to be treated as a passback.
	AntiPassbackWindow time.Duration

	// WelcomeMessage prefixes the granted user's name in the display
	// message, per the configured greeting.
	WelcomeMessage string

	Now NowFunc
}

// Validate resolves credential (captured via readerType, in the
// direction the reader is assigned) to a Decision and logs it.
func (v *Validator) Validate(ctx context.Context, credential string, direction command.Direction, readerType command.ReaderType) (command.AccessResponse, error) {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}

	user, found, err := v.resolveUser(ctx, credential, readerType)
	if err != nil {
		return command.AccessResponse{}, err
	}

	decision := v.decide(ctx, user, found, direction, readerType, now())

	if err := v.Catalog.RecordDecision(ctx, user.ID, direction, readerType, decision); err != nil {
		return command.AccessResponse{}, err
	}
	return decision, nil
}

func (v *Validator) resolveUser(ctx context.Context, credential string, readerType command.ReaderType) (catalog.User, bool, error) {
	switch readerType {
	case command.ReaderTypeRFID:
		return v.Catalog.FindByCard(ctx, credential)
	case command.ReaderTypeKeypad:
		return v.Catalog.FindByKeypadCode(ctx, credential)
	case command.ReaderTypeBiometric:
		return v.Catalog.FindByBiometricTemplate(ctx, credential, 100)
	default:
		return v.Catalog.FindByCard(ctx, credential)
	}
}

func (v *Validator) decide(ctx context.Context, user catalog.User, found bool, direction command.Direction, readerType command.ReaderType, now time.Time) command.AccessResponse {
	if !found {
		return deny(msgCardNotEnrolled)
	}
	if !user.Active {
		return deny(msgUserInactive)
	}
	if !user.ValidFrom.IsZero() && now.Before(user.ValidFrom) {
		return deny(msgOutsideValidity)
	}
	if !user.ValidUntil.IsZero() && now.After(user.ValidUntil) {
		return deny(msgOutsideValidity)
	}
	if !methodAllowed(user, readerType) {
		return deny(msgMethodNotAllowed)
	}
	if v.AntiPassbackWindow > 0 {
		last, had, err := v.Catalog.LastGrantAt(ctx, user.ID, direction)
		if err == nil && had && now.Sub(last) < v.AntiPassbackWindow {
			return deny(msgPassback)
		}
	}
	return grant(v.WelcomeMessage, user.Name, direction)
}

func methodAllowed(user catalog.User, readerType command.ReaderType) bool {
	switch readerType {
	case command.ReaderTypeRFID:
		return user.AllowCard
	case command.ReaderTypeKeypad:
		return user.AllowKeypad
	case command.ReaderTypeBiometric:
		return user.AllowBiometric
	default:
		return false
	}
}

func deny(msg string) command.AccessResponse {
	return command.AccessResponse{Grant: command.Deny, DisplayHoldSecs: denyHoldSeconds, DisplayMessage: msg}
}

func grant(welcome, name string, direction command.Direction) command.AccessResponse {
	grantKind := command.GrantBoth
	switch direction {
	case command.DirectionEntry:
		grantKind = command.GrantEntry
	case command.DirectionExit:
		grantKind = command.GrantExit
	}
	msg := welcome
	if name != "" {
		if msg != "" {
			msg += " " + name
		} else {
			msg = name
		}
	}
	return command.AccessResponse{Grant: grantKind, DisplayHoldSecs: grantHoldSeconds, DisplayMessage: msg}
}
