package certificates

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"

	"github.com/balu-16/certificate-place-final/pkg/email"
	"github.com/balu-16/certificate-place-final/pkg/workflows"
)

// ErrNoEmailAddress is returned when a reviewed student has no address on file.
var ErrNoEmailAddress = errors.New("no email address found for student")

const unknownCompany = "Unknown Company"

// Notifier tells a student the outcome of a review.
type Notifier interface {
	NotifyReview(ctx context.Context, student *Student, status string) (string, error)
}

type emailNotifier struct {
	sender email.Sender
}

// NewEmailNotifier sends review outcomes through sender. A nil sender
// disables notifications.
func NewEmailNotifier(sender email.Sender) Notifier {
	if sender == nil {
		sender = email.NopSender{}
	}
	return &emailNotifier{sender: sender}
}

func (n *emailNotifier) NotifyReview(ctx context.Context, student *Student, status string) (string, error) {
	if student.Email == nil || *student.Email == "" {
		return "", ErrNoEmailAddress
	}
	msg, err := reviewMessage(student, status)
	if err != nil {
		return "", err
	}
	msg.To = *student.Email
	return n.sender.Send(ctx, msg)
}

func reviewMessage(student *Student, status string) (email.Message, error) {
	course := deref(student.CourseEnrolled)
	switch status {
	case workflows.StatusApproved:
		company := deref(student.CompanyName)
		if company == "" {
			company = unknownCompany
		}
		text := fmt.Sprintf("Dear %s,\n\nYour certificate for %s at %s has been approved. "+
			"You can download it from the Downloads section using student ID %s.\n",
			student.Name, course, company, strconv.FormatInt(student.ID, 10))
		return email.Message{
			Subject: "Your certificate has been approved",
			Text:    text,
			HTML:    "<p>" + html.EscapeString(text) + "</p>",
		}, nil
	case workflows.StatusRejected:
		text := fmt.Sprintf("Dear %s,\n\nYour certificate request for %s was not approved. "+
			"You can submit a new request from the certificate page.\n", student.Name, course)
		return email.Message{
			Subject: "Your certificate request was not approved",
			Text:    text,
			HTML:    "<p>" + html.EscapeString(text) + "</p>",
		}, nil
	default:
		return email.Message{}, fmt.Errorf("no notification for status %q", status)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
