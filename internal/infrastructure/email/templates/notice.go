// Package templates provides email template layout
package templates

import (
	"bytes"
	"html/template"
	"log"
)

// ApprovalNoticeProps carries the fields rendered into the pending-approval
// notification email.
type ApprovalNoticeProps struct {
	Kind      string
	RequestID string
	Timeout   string
}

var approvalNoticeTemplate = template.Must(template.New("approvalNotice").Parse(`
<!doctype html>
<html lang="en">
  <head>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <meta http-equiv="Content-Type" content="text/html; charset=UTF-8">
    <title>Approval required</title>
  </head>
  <body style="font-family: Helvetica, sans-serif; font-size: 16px; line-height: 1.3; background-color: #f4f5f6; margin: 0; padding: 24px;">
    <table role="presentation" border="0" cellpadding="0" cellspacing="0" width="100%" style="max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 4px;">
      <tr>
        <td style="padding: 24px;">
          <h2 style="margin-top: 0;">A visitor is waiting on approval</h2>
          <p>A <strong>{{.Kind}}</strong> checkpoint is pending review.</p>
          <p>Request ID: <code>{{.RequestID}}</code></p>
          <p>If nobody decides within {{.Timeout}}, the request expires and the visitor is sent back to the step.</p>
          <p>Open the observer console to approve or reject it.</p>
        </td>
      </tr>
    </table>
  </body>
</html>
`))

// GetApprovalNoticeContent renders the pending-approval email body.
func GetApprovalNoticeContent(props ApprovalNoticeProps) string {
	var buf bytes.Buffer
	if err := approvalNoticeTemplate.Execute(&buf, props); err != nil {
		log.Printf("ERROR: Failed to render approval notice email: %v", err)
		return ""
	}
	return buf.String()
}
