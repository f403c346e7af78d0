package workflow

import (
	"context"
	"errors"

	"tower_bot/internal/logging"
	"tower_bot/internal/matcher"
	"tower_bot/internal/models"
	"tower_bot/internal/wordpress"
)

func isNotFound(err error) bool {
	return errors.Is(err, wordpress.ErrNotFound)
}

// createAccount creates the WordPress user for a Reddit handle and sends the
// credentials by private message.
func (o *Orchestrator) createAccount(ctx context.Context, handle string) (models.Account, bool) {
	username := DeriveUsername(handle)
	log := o.logger.WithFields(logging.Fields{"author": handle, "username": username})

	password := o.passphrase()
	account, err := o.cms.CreateUser(ctx, username, password)
	if err != nil {
		log.WithError(err).Error("Account creation failed")
		return models.Account{}, false
	}
	log.WithField("user_id", account.ID).Info("Account created")

	o.notify(ctx, handle, accountCreatedSubject, accountCreatedMessage(handle, username, password, o.settings.LoginURL))
	return account, true
}

// HandleCommand runs a private-message command for the message author.
func (o *Orchestrator) HandleCommand(ctx context.Context, cmd matcher.Command) Outcome {
	handle := cmd.Item.Author
	log := o.logger.WithFields(logging.Fields{
		"item_id": cmd.Item.ID,
		"author":  handle,
		"command": cmd.Kind.String(),
	})
	if handle == "" {
		log.Warn("Command without author ignored")
		return OutcomeIgnored
	}

	switch cmd.Kind {
	case matcher.CreateAccount:
		return o.handleCreateAccount(ctx, log, handle)
	case matcher.ResetPassword:
		return o.handleResetPassword(ctx, log, handle)
	default:
		log.Warn("Unknown command ignored")
		return OutcomeIgnored
	}
}

func (o *Orchestrator) lookup(ctx context.Context, log logging.Entry, username string) (models.Account, bool) {
	account, err := o.cms.FindUser(ctx, username)
	if err == nil {
		return account, true
	}
	if !isNotFound(err) {
		log.WithError(err).Warn("User lookup failed")
	}
	return models.Account{}, false
}

func (o *Orchestrator) handleCreateAccount(ctx context.Context, log logging.Entry, handle string) Outcome {
	username := DeriveUsername(handle)
	if account, ok := o.lookup(ctx, log, username); ok {
		log.WithField("user_id", account.ID).Info("Account already exists")
		o.notify(ctx, handle, accountExistsSubject, accountExistsMessage(username, o.settings.LoginURL))
		return OutcomeAccountExists
	}

	if _, ok := o.createAccount(ctx, handle); !ok {
		o.notify(ctx, handle, accountFailedSubject, accountFailedMessage)
		return OutcomeFailed
	}
	return OutcomeAccountCreated
}

func (o *Orchestrator) handleResetPassword(ctx context.Context, log logging.Entry, handle string) Outcome {
	username := DeriveUsername(handle)
	account, ok := o.lookup(ctx, log, username)
	if !ok {
		log.Info("No account to reset")
		o.notify(ctx, handle, accountNotFoundSubject, accountNotFoundMessage(o.settings.LoginURL))
		return OutcomeNotFound
	}

	password := o.passphrase()
	if err := o.cms.UpdatePassword(ctx, account.ID, password); err != nil {
		log.WithError(err).Error("Password reset failed")
		o.notify(ctx, handle, resetFailedSubject, resetFailedMessage)
		return OutcomeFailed
	}
	log.WithField("user_id", account.ID).Info("Password reset")
	o.notify(ctx, handle, resetDoneSubject, resetDoneMessage(username, password, o.settings.LoginURL))
	return OutcomePasswordReset
}
