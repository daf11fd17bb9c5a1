package schema

// Default returns the built-in registry for the surrounding donor-CRM
// domain. Callers that have a destination database should prefer a
// registry produced by introspection or loaded from configuration; this
// catalog exists so previews work out of the box.
//
// The returned slice is freshly allocated on every call so callers can
// append or reorder without affecting each other.
func Default() []Table {
	return []Table{
		{
			Table:   "donors",
			Label:   "Donors",
			Aliases: []string{"contacts", "supporters"},
			Fields: []Field{
				{Field: "external_id", Type: "id", Aliases: []string{"id", "donor_id", "contact_id"}},
				{Field: "first_name", Type: "string", Required: true, Aliases: []string{"first", "given_name", "forename"}},
				{Field: "last_name", Type: "string", Required: true, Aliases: []string{"last", "surname", "family_name"}},
				{Field: "email", Type: "email", Required: true, Aliases: []string{"email_address", "e_mail", "donor_email"}},
				{Field: "phone", Type: "phone", Aliases: []string{"phone_number", "mobile", "cell", "telephone"}},
				{Field: "address", Type: "string", Aliases: []string{"street", "address_line_1", "mailing_address"}},
				{Field: "city", Type: "string"},
				{Field: "postal_code", Type: "string", Aliases: []string{"zip", "zip_code", "postcode"}},
				{Field: "notes", Type: "string", Aliases: []string{"comments", "remarks"}},
			},
		},
		{
			Table:   "donations",
			Label:   "Donations",
			Aliases: []string{"gifts", "contributions", "pledges"},
			Fields: []Field{
				{Field: "donor_email", Type: "email", Required: true, Aliases: []string{"email", "donor", "contact_email"}},
				{Field: "amount", Type: "currency", Required: true, Aliases: []string{"donation_amount", "gift_amount", "total", "value"}},
				{Field: "currency", Type: "string", Aliases: []string{"currency_code"}},
				{Field: "donation_date", Type: "date", Required: true, Aliases: []string{"date", "gift_date", "donated_at", "received_at"}},
				{Field: "method", Type: "string", Aliases: []string{"payment_method", "channel"}},
				{Field: "campaign", Type: "string", Aliases: []string{"fund", "appeal", "designation"}},
				{Field: "recurring", Type: "boolean", Aliases: []string{"is_recurring", "monthly"}},
				{Field: "notes", Type: "string", Aliases: []string{"memo", "comments"}},
			},
		},
		{
			Table:   "events",
			Label:   "Events",
			Fields: []Field{
				{Field: "name", Type: "string", Required: true, Aliases: []string{"event_name", "title"}},
				{Field: "start_date", Type: "datetime", Required: true, Aliases: []string{"start", "starts_at", "date"}},
				{Field: "end_date", Type: "datetime", Aliases: []string{"end", "ends_at"}},
				{Field: "location", Type: "string", Aliases: []string{"venue", "place"}},
				{Field: "capacity", Type: "number", Aliases: []string{"max_attendees", "seats"}},
				{Field: "description", Type: "string", Aliases: []string{"details", "summary"}},
			},
		},
		{
			Table:   "volunteers",
			Label:   "Volunteers",
			Fields: []Field{
				{Field: "first_name", Type: "string", Required: true, Aliases: []string{"first", "given_name"}},
				{Field: "last_name", Type: "string", Required: true, Aliases: []string{"last", "surname"}},
				{Field: "email", Type: "email", Required: true, Aliases: []string{"email_address", "volunteer_email"}},
				{Field: "phone", Type: "phone", Aliases: []string{"phone_number", "mobile", "cell"}},
				{Field: "hours", Type: "number", Aliases: []string{"hours_logged", "volunteer_hours"}},
				{Field: "skills", Type: "string", Aliases: []string{"skill_set", "interests"}},
			},
		},
		{
			Table:   "tasks",
			Label:   "Tasks",
			Aliases: []string{"todos", "activities"},
			Fields: []Field{
				{Field: "title", Type: "string", Required: true, Aliases: []string{"name", "task", "subject"}},
				{Field: "due_date", Type: "date", Aliases: []string{"due", "deadline", "due_at"}},
				{Field: "assignee_email", Type: "email", Aliases: []string{"assignee", "assigned_to", "owner_email"}},
				{Field: "status", Type: "string", Aliases: []string{"state", "stage"}},
				{Field: "priority", Type: "string", Aliases: []string{"urgency"}},
			},
		},
	}
}
