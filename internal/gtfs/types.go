package gtfs

// Kind identifies one of the eight recognised feed tables. Each kind owns a
// vertex collection of the same name in the graph store.
type Kind string

const (
	KindAgency        Kind = "agency"
	KindStops         Kind = "stops"
	KindRoutes        Kind = "routes"
	KindTrips         Kind = "trips"
	KindStopTimes     Kind = "stop_times"
	KindCalendar      Kind = "calendar"
	KindCalendarDates Kind = "calendar_dates"
	KindPathways      Kind = "pathways"
)

// Collection returns the name of the vertex collection backing this kind.
func (k Kind) Collection() string { return string(k) }

// EdgeKind identifies a relationship collection. The first five are mapped
// directly from feed rows; precedes, serves and has_routes are derived by
// the post-load enrichment jobs.
type EdgeKind string

const (
	EdgePartOfTrip EdgeKind = "part_of_trip"
	EdgeLocatedAt  EdgeKind = "located_at"
	EdgeUses       EdgeKind = "uses"
	EdgePartOfStop EdgeKind = "part_of_stop"
	EdgeOperates   EdgeKind = "operates"
	EdgePrecedes   EdgeKind = "precedes"
	EdgeServes     EdgeKind = "serves"
	EdgeHasRoutes  EdgeKind = "has_routes"
)

// Collection returns the name of the edge collection backing this kind.
func (e EdgeKind) Collection() string { return string(e) }

// Edge is a directed link between two persisted documents. From and To are
// full document handles ("collection/key").
type Edge struct {
	Kind EdgeKind `json:"-"`
	From string   `json:"_from"`
	To   string   `json:"_to"`
}

// Handle builds the document handle for a key in a collection.
func Handle(collection, key string) string { return collection + "/" + key }

// Location types (stops.location_type).
const (
	LocationStop = iota
	LocationStation
	LocationEntranceOrExit
	LocationGenericNode
	LocationBoardingArea
)

// Calendar date exception types.
const (
	ExceptionAdded   = 1
	ExceptionRemoved = 2
)

// Pathway modes (pathways.pathway_mode).
const (
	PathwayWalkway = iota + 1
	PathwayStairs
	PathwayTravelator
	PathwayEscalator
	PathwayElevator
	PathwayFareGate
	PathwayExitGate
)

// Agency is one row of agency.txt.
type Agency struct {
	Key      string `json:"_key"`
	Name     string `json:"name,omitempty"`
	URL      string `json:"url,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	Lang     string `json:"lang,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Stop is one row of stops.txt. WheelchairBoarding is tri-state: a nil
// pointer means unknown, never false.
type Stop struct {
	Key                string   `json:"_key"`
	Code               string   `json:"code,omitempty"`
	Name               string   `json:"name,omitempty"`
	Desc               string   `json:"desc,omitempty"`
	Lon                *float64 `json:"lon,omitempty"`
	Lat                *float64 `json:"lat,omitempty"`
	ZoneID             string   `json:"zoneId,omitempty"`
	URL                string   `json:"url,omitempty"`
	LocationType       *int     `json:"locationType,omitempty"`
	ParentStation      string   `json:"parentStation,omitempty"`
	Timezone           string   `json:"timezone,omitempty"`
	LevelID            string   `json:"levelId,omitempty"`
	WheelchairBoarding *bool    `json:"wheelchairBoarding,omitempty"`
	PlatformCode       string   `json:"platformCode,omitempty"`
}

// Route is one row of routes.txt. Color and TextColor are stored in
// "#RRGGBB" form.
type Route struct {
	Key       string `json:"_key"`
	AgencyID  string `json:"agencyId,omitempty"`
	ShortName string `json:"shortName,omitempty"`
	LongName  string `json:"longName,omitempty"`
	Desc      string `json:"desc,omitempty"`
	Type      *int   `json:"type,omitempty"`
	URL       string `json:"url,omitempty"`
	Color     string `json:"color,omitempty"`
	TextColor string `json:"textColor,omitempty"`
	SortOrder *int   `json:"sortOrder,omitempty"`
}

// Trip is one row of trips.txt. WheelchairAccessible and BikesAllowed are
// tri-state.
type Trip struct {
	Key                  string `json:"_key"`
	RouteID              string `json:"routeId,omitempty"`
	ServiceID            string `json:"serviceId,omitempty"`
	Headsign             string `json:"headsign,omitempty"`
	ShortName            string `json:"shortName,omitempty"`
	DirectionID          *int   `json:"directionId,omitempty"`
	BlockID              string `json:"blockId,omitempty"`
	ShapeID              string `json:"shapeId,omitempty"`
	WheelchairAccessible *bool  `json:"wheelchairAccessible,omitempty"`
	BikesAllowed         *bool  `json:"bikesAllowed,omitempty"`
}

// StopTime is one row of stop_times.txt. Rows have no natural unique key at
// row grain, a trip can revisit a stop, so Key is a minted uuid. Ordering
// within a trip lives in StopSequence.
type StopTime struct {
	Key           string `json:"_key"`
	TripID        string `json:"tripId,omitempty"`
	StopID        string `json:"stopId,omitempty"`
	ArrivalTime   string `json:"arrivalTime,omitempty"`
	DepartureTime string `json:"departureTime,omitempty"`
	StopSequence  *int   `json:"stopSequence,omitempty"`
	PickupType    *int   `json:"pickupType,omitempty"`
	DropOffType   *int   `json:"dropOffType,omitempty"`
	LocalZoneID   string `json:"localZoneId,omitempty"`
	StopHeadsign  string `json:"stopHeadsign,omitempty"`
	Timepoint     *int   `json:"timepoint,omitempty"`
}

// Calendar is one row of calendar.txt. ServiceID is not a primary key,
// several rows may share it; the store keeps a non-unique index instead.
// Day flags are strict booleans, unknown is not a valid state here.
type Calendar struct {
	ServiceID string `json:"serviceId"`
	Monday    bool   `json:"monday"`
	Tuesday   bool   `json:"tuesday"`
	Wednesday bool   `json:"wednesday"`
	Thursday  bool   `json:"thursday"`
	Friday    bool   `json:"friday"`
	Saturday  bool   `json:"saturday"`
	Sunday    bool   `json:"sunday"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// CalendarDate is one row of calendar_dates.txt.
type CalendarDate struct {
	ServiceID     string `json:"serviceId"`
	Date          string `json:"date,omitempty"`
	ExceptionType *int   `json:"exceptionType,omitempty"`
}

// Pathway is one row of pathways.txt. It is edge shaped: it carries its own
// key and the from/to stop handles as document fields, so it is persisted
// into an edge collection directly rather than through a separate Edge row.
type Pathway struct {
	Key                  string   `json:"_key"`
	From                 string   `json:"_from"`
	To                   string   `json:"_to"`
	Mode                 *int     `json:"mode,omitempty"`
	IsBidirectional      bool     `json:"isBidirectional"`
	Length               *float64 `json:"length,omitempty"`
	TraversalTime        *int     `json:"traversalTime,omitempty"`
	StairCount           *int     `json:"stairCount,omitempty"`
	MaxSlope             *float64 `json:"maxSlope,omitempty"`
	MinWidth             *float64 `json:"minWidth,omitempty"`
	SignpostedAs         string   `json:"signpostedAs,omitempty"`
	ReversedSignpostedAs string   `json:"reversedSignpostedAs,omitempty"`
}
