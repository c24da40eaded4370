package trips

// DefaultVariants returns the descriptors for the four TLC trip record
// datasets. Green and FHV tables are rebuilt on every load; yellow and FHVHV
// accumulate.
func DefaultVariants() []Variant {
	return []Variant{
		{
			Name:          "green",
			FilePrefix:    "green_tripdata",
			PickupField:   "lpep_pickup_datetime",
			DropoffField:  "lpep_dropoff_datetime",
			FareField:     "fare_amount",
			DistanceField: "trip_distance",
			RequireFare:   true,
			DurationUnit:  Hours,
			Table:         "green_taxi_data",
			LoadMode:      ModeReplace,
			Columns: []Column{
				{Name: "lpep_pickup_datetime", Type: Datetime, NotNull: true},
				{Name: "lpep_dropoff_datetime", Type: Datetime, NotNull: true},
				{Name: "PULocationID", Type: Integer},
				{Name: "DOLocationID", Type: Integer},
				{Name: "passenger_count", Type: Real},
				{Name: "trip_distance", Type: Real},
				{Name: DurationColumn, Type: Real},
				{Name: SpeedColumn, Type: Real},
				{Name: "fare_amount", Type: Real},
			},
		},
		{
			Name:          "yellow",
			FilePrefix:    "yellow_tripdata",
			PickupField:   "tpep_pickup_datetime",
			DropoffField:  "tpep_dropoff_datetime",
			FareField:     "fare_amount",
			DistanceField: "trip_distance",
			DurationUnit:  Hours,
			Table:         "yellow_taxi_data",
			LoadMode:      ModeAppend,
			Columns: []Column{
				{Name: "tpep_pickup_datetime", Type: Datetime, NotNull: true},
				{Name: "tpep_dropoff_datetime", Type: Datetime, NotNull: true},
				{Name: "PULocationID", Type: Integer},
				{Name: "DOLocationID", Type: Integer},
				{Name: "trip_distance", Type: Real},
				{Name: "fare_amount", Type: Real},
				{Name: "passenger_count", Type: Integer},
				{Name: DurationColumn, Type: Real},
				{Name: SpeedColumn, Type: Real},
			},
		},
		{
			Name:         "fhv",
			FilePrefix:   "fhv_tripdata",
			PickupField:  "pickup_datetime",
			DropoffField: "dropOff_datetime",
			DurationUnit: Hours,
			Table:        "fhv_trip_data",
			LoadMode:     ModeReplace,
			Columns: []Column{
				{Name: "dispatching_base_num", Type: Text},
				{Name: "pickup_datetime", Type: Datetime, NotNull: true},
				{Name: "dropOff_datetime", Type: Datetime, NotNull: true},
				{Name: "PUlocationID", Type: Integer},
				{Name: "DOlocationID", Type: Integer},
				{Name: "SR_Flag", Type: Text},
				{Name: "Affiliated_base_number", Type: Text},
				{Name: DurationColumn, Type: Real},
			},
		},
		{
			Name:          "fhvhv",
			FilePrefix:    "fhvhv_tripdata",
			PickupField:   "pickup_datetime",
			DropoffField:  "dropoff_datetime",
			FareField:     "base_passenger_fare",
			DistanceField: "trip_miles",
			DurationUnit:  Hours,
			Table:         "fhvhv_trip_data",
			LoadMode:      ModeAppend,
			Columns: []Column{
				{Name: "pickup_datetime", Type: Datetime, NotNull: true},
				{Name: "dropoff_datetime", Type: Datetime, NotNull: true},
				{Name: "PULocationID", Type: Integer},
				{Name: "DOLocationID", Type: Integer},
				{Name: "base_passenger_fare", Type: Real},
				{Name: "trip_distance", Type: Real, Source: "trip_miles"},
				{Name: DurationColumn, Type: Real},
				{Name: SpeedColumn, Type: Real},
			},
		},
	}
}
