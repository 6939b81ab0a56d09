package googlemaps

// Google Maps web service response envelopes. Only the fields we read are declared.

// Response statuses shared by the geocoding, distance-matrix and directions APIs.
const (
	statusOK             = "OK"
	statusZeroResults    = "ZERO_RESULTS"
	statusNotFound       = "NOT_FOUND"
	statusOverQueryLimit = "OVER_QUERY_LIMIT"
	statusRequestDenied  = "REQUEST_DENIED"
	statusInvalidRequest = "INVALID_REQUEST"
	statusMaxElements    = "MAX_ELEMENTS_EXCEEDED"
)

type textValue struct {
	Text  string  `json:"text"`
	Value float64 `json:"value"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type geocodeResponse struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Results      []geocodeResult `json:"results"`
}

type geocodeResult struct {
	FormattedAddress string `json:"formatted_address"`
	Geometry         struct {
		Location latLng `json:"location"`
	} `json:"geometry"`
}

type distanceMatrixResponse struct {
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
	Rows         []matrixRow `json:"rows"`
}

type matrixRow struct {
	Elements []matrixElement `json:"elements"`
}

type matrixElement struct {
	Status   string    `json:"status"`
	Duration textValue `json:"duration"`
	Distance textValue `json:"distance"`
}

type directionsResponse struct {
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Routes       []route `json:"routes"`
}

type route struct {
	Summary string `json:"summary"`
	Legs    []leg  `json:"legs"`
	Fare    *fare  `json:"fare,omitempty"`
}

type fare struct {
	Currency string  `json:"currency"`
	Text     string  `json:"text"`
	Value    float64 `json:"value"`
}

type leg struct {
	Duration textValue `json:"duration"`
	Distance textValue `json:"distance"`
	Steps    []step    `json:"steps"`
}

type step struct {
	HTMLInstructions string          `json:"html_instructions"`
	TravelMode       string          `json:"travel_mode"`
	TransitDetails   *transitDetails `json:"transit_details,omitempty"`
}

type transitDetails struct {
	NumStops int `json:"num_stops"`
	Line     struct {
		Name      string `json:"name"`
		ShortName string `json:"short_name"`
		Vehicle   struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"vehicle"`
	} `json:"line"`
}
