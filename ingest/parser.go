package ingest

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"threadmail/models"
	"threadmail/utils"
)

// ParseMessage turns a raw RFC 822 message into a domain Message. The
// ingestion layer owns all wire-format concerns; the domain model only ever
// sees validated value objects.
func ParseMessage(raw []byte) (models.Message, error) {
	const op = "ingest.ParseMessage"

	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return models.Message{}, utils.ValidationError(op, "unparsable message", err)
	}

	subjectRaw, _ := reader.Header.Subject()
	subject, err := models.NewSubject(subjectRaw)
	if err != nil {
		return models.Message{}, err
	}

	from, err := singleAddress(reader.Header, "From")
	if err != nil {
		return models.Message{}, err
	}

	to, err := addressList(reader.Header, "To")
	if err != nil {
		return models.Message{}, err
	}
	cc, _ := addressList(reader.Header, "Cc")
	bcc, _ := addressList(reader.Header, "Bcc")

	externalID, _ := reader.Header.MessageID()
	inReplyTo := firstMsgID(reader.Header, "In-Reply-To")
	references, _ := reader.Header.MsgIDList("References")

	sentAt, err := reader.Header.Date()
	if err != nil || sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}

	plain, html, attachments, err := readParts(reader)
	if err != nil {
		return models.Message{}, utils.ValidationError(op, "unreadable message body", err)
	}

	content, err := models.NewContent(plain, html)
	if err != nil {
		return models.Message{}, err
	}

	return models.NewMessage(models.MessageParams{
		ID:                uuid.New().String(),
		ExternalMessageID: externalID,
		Subject:           subject,
		From:              from,
		To:                to,
		Cc:                cc,
		Bcc:               bcc,
		Content:           content,
		SentAt:            sentAt.UTC(),
		Attachments:       attachments,
		InReplyTo:         inReplyTo,
		References:        references,
	})
}

// readParts walks the MIME structure collecting text bodies and attachments.
func readParts(reader *mail.Reader) (plain, html string, attachments []models.Attachment, err error) {
	for {
		part, partErr := reader.NextPart()
		if partErr == io.EOF {
			break
		}
		if partErr != nil {
			return "", "", nil, partErr
		}

		switch header := part.Header.(type) {
		case *mail.InlineHeader:
			mediaType, _, _ := header.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			switch {
			case strings.HasPrefix(mediaType, "text/plain") || mediaType == "":
				if plain == "" {
					plain = string(body)
				} else {
					plain += "\n" + string(body)
				}
			case strings.HasPrefix(mediaType, "text/html"):
				if html == "" {
					html = string(body)
				} else {
					html += "\n" + string(body)
				}
			default:
				// Inline non-text part, e.g. an embedded image referenced
				// by Content-ID from the HTML body.
				att, attErr := inlineAttachment(header, mediaType, int64(len(body)))
				if attErr == nil {
					attachments = append(attachments, att)
				}
			}

		case *mail.AttachmentHeader:
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			filename, _ := header.Filename()
			if filename == "" {
				filename = "unnamed"
			}
			mediaType, _, _ := header.ContentType()
			att, attErr := models.NewAttachment(uuid.New().String(), filename, mediaType, int64(len(body)), contentID(header.Get("Content-Id")), false)
			if attErr == nil {
				attachments = append(attachments, att)
			}
		}
	}
	return plain, html, attachments, nil
}

// inlineAttachment builds an attachment record for an inline non-text part.
func inlineAttachment(header *mail.InlineHeader, mediaType string, size int64) (models.Attachment, error) {
	filename := header.Get("Content-Description")
	if filename == "" {
		filename = "inline"
	}
	return models.NewAttachment(uuid.New().String(), filename, mediaType, size, contentID(header.Get("Content-Id")), true)
}

// singleAddress reads a header expected to carry exactly one address.
func singleAddress(header mail.Header, field string) (models.EmailAddress, error) {
	const op = "ingest.ParseMessage"

	list, err := header.AddressList(field)
	if err != nil || len(list) == 0 {
		return models.EmailAddress{}, utils.ValidationError(op, "missing or invalid "+field+" header", err)
	}
	return models.NewEmailAddress(list[0].Address, list[0].Name)
}

// addressList reads a recipient header into domain addresses.
func addressList(header mail.Header, field string) ([]models.EmailAddress, error) {
	const op = "ingest.ParseMessage"

	list, err := header.AddressList(field)
	if err != nil {
		return nil, utils.ValidationError(op, "invalid "+field+" header", err)
	}

	out := make([]models.EmailAddress, 0, len(list))
	for _, addr := range list {
		parsed, err := models.NewEmailAddress(addr.Address, addr.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// firstMsgID returns the first message id in a header field, if any.
func firstMsgID(header mail.Header, field string) string {
	ids, err := header.MsgIDList(field)
	if err != nil || len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// contentID strips the angle brackets from a Content-Id header value.
func contentID(v string) string {
	return strings.Trim(strings.TrimSpace(v), "<>")
}
