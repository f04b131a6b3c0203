package store

// UserPreferences represents per-user scheduling preferences.
// Times are "HH:MM" strings in the user's timezone.
type UserPreferences struct {
	UserID         string
	WorkHoursStart string
	WorkHoursEnd   string
	BreakStart     string
	BreakEnd       string
	Timezone       string
	CreatedTs      int64
	UpdatedTs      int64
}

// FindUserPreferences specifies the conditions for finding user preferences.
type FindUserPreferences struct {
	UserID *string
}

// UpsertUserPreferences specifies the data for upserting user preferences.
type UpsertUserPreferences struct {
	UserID         string
	WorkHoursStart string
	WorkHoursEnd   string
	BreakStart     string
	BreakEnd       string
	Timezone       string
}
