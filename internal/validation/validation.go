package validation

import (
	"fmt"
	"strings"
	"unicode"

	"chatsink/internal/constants"
	"chatsink/internal/errors"
	"chatsink/internal/models"
)

// ValidateParticipantID validates a participant identity string
func ValidateParticipantID(id string) error {
	if id == "" {
		return errors.New(errors.ErrCodeInvalidInput, "participant identity cannot be empty")
	}

	if len(id) > constants.MaxParticipantIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("participant identity too long (max %d characters)", constants.MaxParticipantIDLength))
	}

	for _, char := range id {
		if unicode.IsControl(char) {
			return errors.New(errors.ErrCodeInvalidInput, "participant identity contains control characters")
		}
	}

	// The pipe is reserved as the direct-chat pair separator.
	if strings.ContainsRune(id, '|') {
		return errors.New(errors.ErrCodeInvalidInput, "participant identity must not contain '|'")
	}

	return nil
}

// ValidateTransportID validates a transport-assigned message identifier
func ValidateTransportID(id string) error {
	if id == "" {
		return nil // optional field
	}

	if len(id) > constants.MaxTransportIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("transport message ID too long (max %d characters)", constants.MaxTransportIDLength))
	}

	for _, char := range id {
		if char == '\x00' || char == '\n' || char == '\r' || char == '\t' {
			return errors.New(errors.ErrCodeInvalidInput, "transport message ID contains invalid characters")
		}
	}

	return nil
}

// ValidateInboundEvent checks the structural requirements of an
// inbound event before it reaches the ingestion engine. Failures are
// rejected outright and never retried.
func ValidateInboundEvent(event *models.InboundEvent) error {
	if event == nil {
		return errors.New(errors.ErrCodeValidationFailed, "event is nil")
	}

	if err := ValidateParticipantID(event.Sender); err != nil {
		return errors.NewValidationError("sender", event.Sender, "invalid sender identity")
	}

	if event.Chat == "" {
		return errors.NewValidationError("chat", "", "chat identity is required")
	}
	if len(event.Chat) > constants.MaxParticipantIDLength {
		return errors.NewValidationError("chat", event.Chat, "chat identity too long")
	}

	if event.Type == "" {
		return errors.NewValidationError("type", "", "event type is required")
	}

	if len(event.Content) > constants.MaxContentLength {
		return errors.NewValidationError("content", "", fmt.Sprintf("content exceeds %d bytes", constants.MaxContentLength))
	}

	if models.BinaryTypes[event.Type] {
		if event.Media == "" {
			return errors.NewValidationError("media", "", fmt.Sprintf("media payload is required for %s events", event.Type))
		}
		if event.MimeType == "" {
			return errors.NewValidationError("mimetype", "", fmt.Sprintf("mimetype is required for %s events", event.Type))
		}
	}

	if err := ValidateTransportID(event.MessageID); err != nil {
		return errors.NewValidationError("messageId", event.MessageID, "invalid transport message ID")
	}

	return nil
}

// ValidateReactionToken validates a reaction token
func ValidateReactionToken(token string) error {
	if token == "" {
		return errors.New(errors.ErrCodeInvalidInput, "reaction token cannot be empty")
	}

	if len(token) > 32 {
		return errors.New(errors.ErrCodeInvalidInput, "reaction token too long (max 32 characters)")
	}

	return nil
}
