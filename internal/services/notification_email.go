package services

import (
	"fmt"

	"github.com/HammerMeetNail/fitchat/internal/models"
)

type notificationEmailParams struct {
	Type          models.NotificationType
	RecipientName string
	ActorName     string
	BaseURL       string
}

func buildNotificationEmail(params notificationEmailParams) (string, string, string) {
	actor := params.ActorName
	if actor == "" {
		actor = "Someone"
	}

	var subject, headline, action, link string
	switch params.Type {
	case models.NotificationTypeFriendRequestAccepted:
		subject = fmt.Sprintf("%s accepted your friend request", actor)
		headline = fmt.Sprintf("%s is now your friend on FitChat.", actor)
		action = "Say hello"
		link = fmt.Sprintf("%s/#messages", params.BaseURL)
	default:
		subject = fmt.Sprintf("%s sent you a friend request", actor)
		headline = fmt.Sprintf("%s wants to connect with you on FitChat.", actor)
		action = "Review request"
		link = fmt.Sprintf("%s/#friends", params.BaseURL)
	}
	settingsURL := fmt.Sprintf("%s/#notifications", params.BaseURL)

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 640px; margin: 0 auto; padding: 24px;">
  <h1 style="color: #333; font-size: 24px;">FitChat</h1>
  <p>Hi %s,</p>
  <p style="font-size: 18px;">%s</p>
  <p>
    <a href="%s" style="display: inline-block; background: #0f6f62; color: white; padding: 10px 18px; text-decoration: none; border-radius: 6px; margin: 12px 0;">%s</a>
  </p>
  <hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">
  <p style="color: #666; font-size: 14px;">View notifications: <a href="%s">%s</a></p>
</body>
</html>`,
		templateEscape(params.RecipientName),
		templateEscape(headline),
		templateEscape(link),
		templateEscape(action),
		templateEscape(settingsURL),
		templateEscape(settingsURL),
	)

	text := fmt.Sprintf(`Hi %s,

%s

%s: %s

View notifications: %s

--
FitChat`,
		params.RecipientName,
		headline,
		action,
		link,
		settingsURL,
	)

	return subject, html, text
}
