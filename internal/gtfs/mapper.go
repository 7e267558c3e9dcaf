package gtfs

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Mapped is the result of mapping one feed row: the typed entity documents
// to persist plus any relationship rows derived directly from the record.
type Mapped struct {
	Docs  []any
	Edges []Edge
}

type mapFunc func(Record) (Mapped, error)

// Table is one recognised feed table: its kind, how its documents reach the
// store, and the typed mapping function for its rows. The set of tables is
// closed; kind dispatch happens exactly once, at file discovery.
type Table struct {
	Kind Kind
	// Bulk marks high-volume kinds whose documents go through the store's
	// bulk import path instead of per-document saves.
	Bulk bool
	// EdgesPerRow is the maximum number of relationship rows one record can
	// emit. The batch accumulator uses it to pair flushed document and edge
	// prefixes.
	EdgesPerRow int

	mapRow mapFunc
}

// Map normalizes rec and applies the table's row mapping.
func (t Table) Map(rec Record) (Mapped, error) {
	return t.mapRow(Normalize(rec))
}

var tables = map[Kind]Table{
	KindAgency:        {Kind: KindAgency, mapRow: mapAgency},
	KindStops:         {Kind: KindStops, Bulk: true, EdgesPerRow: 1, mapRow: mapStop},
	KindRoutes:        {Kind: KindRoutes, Bulk: true, EdgesPerRow: 1, mapRow: mapRoute},
	KindTrips:         {Kind: KindTrips, Bulk: true, EdgesPerRow: 1, mapRow: mapTrip},
	KindStopTimes:     {Kind: KindStopTimes, Bulk: true, EdgesPerRow: 2, mapRow: mapStopTime},
	KindCalendar:      {Kind: KindCalendar, mapRow: mapCalendar},
	KindCalendarDates: {Kind: KindCalendarDates, mapRow: mapCalendarDate},
	KindPathways:      {Kind: KindPathways, mapRow: mapPathway},
}

// TableFor returns the table for a feed kind.
func TableFor(kind Kind) (Table, bool) {
	t, ok := tables[kind]
	return t, ok
}

// TableForFile maps a feed file name ("stop_times.txt") to its table.
func TableForFile(filename string) (Table, bool) {
	name, ok := strings.CutSuffix(filename, ".txt")
	if !ok {
		return Table{}, false
	}
	return TableFor(Kind(name))
}

func mapAgency(rec Record) (Mapped, error) {
	return Mapped{Docs: []any{Agency{
		Key:      rec["agency_id"],
		Name:     rec["agency_name"],
		URL:      rec["agency_url"],
		Timezone: rec["agency_timezone"],
		Lang:     rec["agency_lang"],
		Phone:    rec["agency_phone"],
		Email:    rec["agency_email"],
	}}}, nil
}

func mapStop(rec Record) (Mapped, error) {
	stop := Stop{
		Key:                rec["stop_id"],
		Code:               rec["stop_code"],
		Name:               rec["stop_name"],
		Desc:               rec["stop_desc"],
		Lon:                optFloat(rec, "stop_lon"),
		Lat:                optFloat(rec, "stop_lat"),
		ZoneID:             rec["zone_id"],
		URL:                rec["stop_url"],
		LocationType:       optInt(rec, "location_type"),
		ParentStation:      rec["parent_station"],
		Timezone:           rec["stop_timezone"],
		LevelID:            rec["level_id"],
		WheelchairBoarding: triState(rec, "wheelchair_boarding"),
		PlatformCode:       rec["platform_code"],
	}
	m := Mapped{Docs: []any{stop}}
	if stop.ParentStation != "" {
		m.Edges = append(m.Edges, Edge{
			Kind: EdgePartOfStop,
			From: Handle(KindStops.Collection(), stop.Key),
			To:   Handle(KindStops.Collection(), stop.ParentStation),
		})
	}
	return m, nil
}

func mapRoute(rec Record) (Mapped, error) {
	route := Route{
		Key:       rec["route_id"],
		AgencyID:  rec["agency_id"],
		ShortName: rec["route_short_name"],
		LongName:  rec["route_long_name"],
		Desc:      rec["route_desc"],
		Type:      optInt(rec, "route_type"),
		URL:       rec["route_url"],
		Color:     hexColor(rec, "route_color"),
		TextColor: hexColor(rec, "route_text_color"),
		SortOrder: optInt(rec, "route_sort_order"),
	}
	return Mapped{
		Docs: []any{route},
		Edges: []Edge{{
			Kind: EdgeOperates,
			From: Handle(KindAgency.Collection(), route.AgencyID),
			To:   Handle(KindRoutes.Collection(), route.Key),
		}},
	}, nil
}

func mapTrip(rec Record) (Mapped, error) {
	trip := Trip{
		Key:                  rec["trip_id"],
		RouteID:              rec["route_id"],
		ServiceID:            rec["service_id"],
		Headsign:             rec["trip_headsign"],
		ShortName:            rec["trip_short_name"],
		DirectionID:          optInt(rec, "direction_id"),
		BlockID:              rec["block_id"],
		ShapeID:              rec["shape_id"],
		WheelchairAccessible: triState(rec, "wheelchair_accessible"),
		BikesAllowed:         triState(rec, "bikes_allowed"),
	}
	return Mapped{
		Docs: []any{trip},
		Edges: []Edge{{
			Kind: EdgeUses,
			From: Handle(KindTrips.Collection(), trip.Key),
			To:   Handle(KindRoutes.Collection(), trip.RouteID),
		}},
	}, nil
}

func mapStopTime(rec Record) (Mapped, error) {
	// No natural unique key at row grain, so a collision-resistant id is
	// minted per row.
	key := uuid.NewString()
	st := StopTime{
		Key:           key,
		TripID:        rec["trip_id"],
		StopID:        rec["stop_id"],
		ArrivalTime:   rec["arrival_time"],
		DepartureTime: rec["departure_time"],
		StopSequence:  optInt(rec, "stop_sequence"),
		PickupType:    optInt(rec, "pickup_type"),
		DropOffType:   optInt(rec, "drop_off_type"),
		LocalZoneID:   rec["local_zone_id"],
		StopHeadsign:  rec["stop_headsign"],
		Timepoint:     optInt(rec, "timepoint"),
	}
	return Mapped{
		Docs: []any{st},
		Edges: []Edge{
			{
				Kind: EdgePartOfTrip,
				From: Handle(KindStopTimes.Collection(), key),
				To:   Handle(KindTrips.Collection(), st.TripID),
			},
			{
				Kind: EdgeLocatedAt,
				From: Handle(KindStopTimes.Collection(), key),
				To:   Handle(KindStops.Collection(), st.StopID),
			},
		},
	}, nil
}

func mapCalendar(rec Record) (Mapped, error) {
	start, err := isoDate(rec, "start_date")
	if err != nil {
		return Mapped{}, fmt.Errorf("calendar row for service %q: %w", rec["service_id"], err)
	}
	end, err := isoDate(rec, "end_date")
	if err != nil {
		return Mapped{}, fmt.Errorf("calendar row for service %q: %w", rec["service_id"], err)
	}
	return Mapped{Docs: []any{Calendar{
		ServiceID: rec["service_id"],
		Monday:    strictBool(rec, "monday"),
		Tuesday:   strictBool(rec, "tuesday"),
		Wednesday: strictBool(rec, "wednesday"),
		Thursday:  strictBool(rec, "thursday"),
		Friday:    strictBool(rec, "friday"),
		Saturday:  strictBool(rec, "saturday"),
		Sunday:    strictBool(rec, "sunday"),
		StartDate: start,
		EndDate:   end,
	}}}, nil
}

func mapCalendarDate(rec Record) (Mapped, error) {
	date, err := isoDate(rec, "date")
	if err != nil {
		return Mapped{}, fmt.Errorf("calendar_dates row for service %q: %w", rec["service_id"], err)
	}
	return Mapped{Docs: []any{CalendarDate{
		ServiceID:     rec["service_id"],
		Date:          date,
		ExceptionType: optInt(rec, "exception_type"),
	}}}, nil
}

func mapPathway(rec Record) (Mapped, error) {
	return Mapped{Docs: []any{Pathway{
		Key:                  rec["pathway_id"],
		From:                 Handle(KindStops.Collection(), rec["from_stop_id"]),
		To:                   Handle(KindStops.Collection(), rec["to_stop_id"]),
		Mode:                 optInt(rec, "pathway_mode"),
		IsBidirectional:      strictBool(rec, "is_bidirectional"),
		Length:               optFloat(rec, "length"),
		TraversalTime:        optInt(rec, "traversal_time"),
		StairCount:           optInt(rec, "stair_count"),
		MaxSlope:             optFloat(rec, "max_slope"),
		MinWidth:             optFloat(rec, "min_width"),
		SignpostedAs:         rec["signposted_as"],
		ReversedSignpostedAs: rec["reversed_signposted_as"],
	}}}, nil
}
