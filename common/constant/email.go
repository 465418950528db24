package constant

const EmailRegistrationConfirmationTemplate = `
Dear %s,

Your registration for %s has been received.

Registration Details:
------------------------------------------
Registration ID: %s
Manual Entry Code: %s
------------------------------------------

Your QR code is attached to this email. Present it at the entrance, or give
the manual entry code to the staff if scanning is unavailable.

%s

If you have any questions, please contact the event organizer.

Best regards,
The Gatepass Team

Note: This is an automated message, please do not reply to this email.
`

const EmailPaymentInstructionsBlock = `Payment of %s is required to complete this registration.
Payment Reference: %s
Please complete payment before the event; unpaid registrations are not admitted.`

const EmailPaymentReceivedTemplate = `
Dear %s,

We have received your payment of %s.

------------------------------------------
Reference: %s
Credential: %s
------------------------------------------

Your registration is confirmed. See you at the event!

Best regards,
The Gatepass Team
`

const EmailAttendeeValidatedTemplate = `
Dear %s,

Welcome! Your credential %s was validated at the entrance at %s.

If this was not you, contact the event staff immediately: your credential can
only be used once, and it has now been consumed.

Best regards,
The Gatepass Team
`
