package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/parkwatch/internal/core/domain"
	"github.com/samirrijal/parkwatch/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	lotFields := func() graphql.Fields {
		return graphql.Fields{
			"id":             lotField(graphql.String, func(l domain.ParkingLot) interface{} { return l.ID }),
			"name":           lotField(graphql.String, func(l domain.ParkingLot) interface{} { return l.Name }),
			"address":        lotField(graphql.String, func(l domain.ParkingLot) interface{} { return l.Address }),
			"location":       lotField(geoPointType, func(l domain.ParkingLot) interface{} { return l.Location }),
			"capacity":       lotField(graphql.Int, func(l domain.ParkingLot) interface{} { return l.Capacity }),
			"occupancy":      lotField(graphql.Int, func(l domain.ParkingLot) interface{} { return l.Occupancy }),
			"occupancy_rate": lotField(graphql.Int, func(l domain.ParkingLot) interface{} { return l.OccupancyRate() }),
			"available":      lotField(graphql.Int, func(l domain.ParkingLot) interface{} { return l.Available() }),
		}
	}
	lotType := graphql.NewObject(graphql.ObjectConfig{Name: "ParkingLot", Fields: lotFields()})

	nearbyFields := lotFields()
	nearbyFields["distance"] = lotField(graphql.Float, func(l domain.ParkingLot) interface{} { return l.Distance })
	nearbyFields["distance_text"] = &graphql.Field{
		Type: graphql.String,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			if n, ok := p.Source.(usecases.NearbyLot); ok {
				return n.DistanceText, nil
			}
			return nil, nil
		},
	}
	nearbyType := graphql.NewObject(graphql.ObjectConfig{Name: "NearbyLot", Fields: nearbyFields})

	featureType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ClusterFeature",
		Fields: graphql.Fields{
			"is_cluster":        &graphql.Field{Type: graphql.Boolean},
			"latitude":          &graphql.Field{Type: graphql.Float},
			"longitude":         &graphql.Field{Type: graphql.Float},
			"member_count":      &graphql.Field{Type: graphql.Int},
			"representative_id": &graphql.Field{Type: graphql.String},
			"member_ids":        &graphql.Field{Type: graphql.NewList(graphql.String)},
			"id":                &graphql.Field{Type: graphql.String},
			"lot":               &graphql.Field{Type: lotType},
		},
	})

	clusterViewType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ClusterView",
		Fields: graphql.Fields{
			"seq":      &graphql.Field{Type: graphql.Int},
			"zoom":     &graphql.Field{Type: graphql.Int},
			"invalid":  &graphql.Field{Type: graphql.Int},
			"features": &graphql.Field{Type: graphql.NewList(featureType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"lots": &graphql.Field{
				Type:        graphql.NewList(lotType),
				Description: "List all parking lots",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Parking.List(p.Context)
				},
			},
			"lot": &graphql.Field{
				Type:        lotType,
				Description: "Get a parking lot by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Parking.GetByID(p.Context, p.Args["id"].(string))
				},
			},
			"lotsNearby": &graphql.Field{
				Type:        graphql.NewList(nearbyType),
				Description: "Find parking lots near a location",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 1000.0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Parking.Nearby(p.Context,
						p.Args["lat"].(float64), p.Args["lon"].(float64),
						p.Args["radius"].(float64), p.Args["limit"].(int))
				},
			},
			"clusters": &graphql.Field{
				Type:        clusterViewType,
				Description: "Map markers for a viewport",
				Args: graphql.FieldConfigArgument{
					"center_lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"center_lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lat_span":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon_span":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Map.Clusters(p.Context, domain.Viewport{
						CenterLat: p.Args["center_lat"].(float64),
						CenterLon: p.Args["center_lon"].(float64),
						LatSpan:   p.Args["lat_span"].(float64),
						LonSpan:   p.Args["lon_span"].(float64),
					})
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func lotField(t graphql.Output, get func(domain.ParkingLot) interface{}) *graphql.Field {
	return &graphql.Field{
		Type: t,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			return get(lotOf(p.Source)), nil
		},
	}
}

// lotOf unwraps the resolver source of lot-shaped objects.
func lotOf(src interface{}) domain.ParkingLot {
	switch v := src.(type) {
	case domain.ParkingLot:
		return v
	case *domain.ParkingLot:
		if v != nil {
			return *v
		}
	case usecases.NearbyLot:
		return v.ParkingLot
	case *usecases.NearbyLot:
		return v.ParkingLot
	}
	return domain.ParkingLot{}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
