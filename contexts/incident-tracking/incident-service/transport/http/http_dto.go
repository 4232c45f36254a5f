package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateIncidentRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Active         *bool  `json:"active"`
	OrganizationID string `json:"organization_id"`
	Date           string `json:"date"`
	Year           string `json:"year"`
	Type           string `json:"type"`
	Country        string `json:"country"`
	Area           string `json:"area"`
	Location       string `json:"location"`
	Activity       string `json:"activity"`
	Injury         string `json:"injury"`
	Fatal          string `json:"fatal"`
	Species        string `json:"species"`
	Source         string `json:"source"`
	CaseNumber     string `json:"case_number"`
}

type UpdateIncidentRequest struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	Active         *bool   `json:"active"`
	OrganizationID *string `json:"organization_id"`
	Date           *string `json:"date"`
	Year           *string `json:"year"`
	Type           *string `json:"type"`
	Country        *string `json:"country"`
	Area           *string `json:"area"`
	Location       *string `json:"location"`
	Activity       *string `json:"activity"`
	Injury         *string `json:"injury"`
	Fatal          *string `json:"fatal"`
	Species        *string `json:"species"`
	Source         *string `json:"source"`
	CaseNumber     *string `json:"case_number"`
}

type DeleteIncidentsRequest struct {
	IncidentIDs []string `json:"incident_ids"`
}

type DeleteIncidentsResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type ImportIncidentsRequest struct {
	Limit          int    `json:"limit"`
	Where          string `json:"where"`
	OrganizationID string `json:"organization_id"`
}

type ImportIncidentsResponse struct {
	Imported int    `json:"imported"`
	Message  string `json:"message"`
}

type IncidentDTO struct {
	IncidentID     string `json:"incident_id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Active         bool   `json:"active"`
	OrganizationID string `json:"organization_id"`
	Date           string `json:"date"`
	Year           string `json:"year"`
	Type           string `json:"type"`
	Country        string `json:"country"`
	Area           string `json:"area"`
	Location       string `json:"location"`
	Activity       string `json:"activity"`
	Injury         string `json:"injury"`
	Fatal          string `json:"fatal"`
	Species        string `json:"species"`
	Source         string `json:"source"`
	CaseNumber     string `json:"case_number"`
	CreatedBy      string `json:"created_by"`
	CreatedAt      string `json:"created_at"`
	UpdatedBy      string `json:"updated_by,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

type ListIncidentsResponse struct {
	Data       []IncidentDTO `json:"data"`
	TotalCount *int64        `json:"total_count,omitempty"`
}

type DeadLetterDTO struct {
	DeadLetterID string `json:"dead_letter_id"`
	EventID      string `json:"event_id"`
	EventType    string `json:"event_type"`
	AggregateID  string `json:"aggregate_id"`
	Reason       string `json:"reason"`
	Attempts     int    `json:"attempts"`
	FailedAt     string `json:"failed_at"`
}

type ListDeadLettersResponse struct {
	Data []DeadLetterDTO `json:"data"`
}
