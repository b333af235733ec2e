package http

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/core/usecases"
	"github.com/samirrijal/geofence/internal/pkg/logging"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	targetType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Target",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.String},
			"name":      &graphql.Field{Type: graphql.String},
			"latitude":  &graphql.Field{Type: graphql.Float},
			"longitude": &graphql.Field{Type: graphql.Float},
		},
	})

	// MatchView embeds TargetView, which the default resolver does not descend into.
	matchField := func(t graphql.Output, get func(m MatchView) interface{}) *graphql.Field {
		return &graphql.Field{
			Type: t,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				if m, ok := p.Source.(MatchView); ok {
					return get(m), nil
				}
				return nil, nil
			},
		}
	}
	matchType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TargetMatch",
		Fields: graphql.Fields{
			"id":              matchField(graphql.String, func(m MatchView) interface{} { return m.ID }),
			"name":            matchField(graphql.String, func(m MatchView) interface{} { return m.Name }),
			"latitude":        matchField(graphql.Float, func(m MatchView) interface{} { return m.Latitude }),
			"longitude":       matchField(graphql.Float, func(m MatchView) interface{} { return m.Longitude }),
			"distance_meters": matchField(graphql.Float, func(m MatchView) interface{} { return m.DistanceMeters }),
		},
	})

	validationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ValidationResult",
		Fields: graphql.Fields{
			"valid":           &graphql.Field{Type: graphql.Boolean},
			"distance_meters": &graphql.Field{Type: graphql.Float},
			"radius_meters":   &graphql.Field{Type: graphql.Float},
			"target":          &graphql.Field{Type: targetType},
			"evaluated_at":    &graphql.Field{Type: graphql.String},
		},
	})

	nearestType := graphql.NewObject(graphql.ObjectConfig{
		Name: "NearestResult",
		Fields: graphql.Fields{
			"nearest":       &graphql.Field{Type: targetType},
			"within_radius": &graphql.Field{Type: graphql.NewList(matchType)},
			"total_scanned": &graphql.Field{Type: graphql.Int},
		},
	})

	indexedType := graphql.NewObject(graphql.ObjectConfig{
		Name: "IndexedResult",
		Fields: graphql.Fields{
			"within_radius":    &graphql.Field{Type: graphql.NewList(matchType)},
			"total_candidates": &graphql.Field{Type: graphql.Int},
		},
	})

	pointArgs := func(extra graphql.FieldConfigArgument) graphql.FieldConfigArgument {
		args := graphql.FieldConfigArgument{
			"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
			"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
			"radius": &graphql.ArgumentConfig{Type: graphql.Float},
		}
		for k, v := range extra {
			args[k] = v
		}
		return args
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"validate": &graphql.Field{
				Type:        validationType,
				Description: "Check whether a position is within range of a target",
				Args: pointArgs(graphql.FieldConfigArgument{
					"target_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				}),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					radius, err := gqlRadius(p, deps.limits())
					if err != nil {
						return nil, gqlError(p, err)
					}
					res, err := deps.Validator.Validate(p.Context, usecases.ValidateRequest{
						Latitude:     &lat,
						Longitude:    &lon,
						TargetID:     p.Args["target_id"].(string),
						RadiusMeters: &radius,
					})
					if err != nil {
						return nil, gqlError(p, err)
					}
					return validationView(res), nil
				},
			},
			"nearest": &graphql.Field{
				Type:        nearestType,
				Description: "Targets within a radius, scanning the whole registry",
				Args: pointArgs(graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				}),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					coord, radius, limit, err := gqlSearchArgs(p, deps.limits())
					if err != nil {
						return nil, gqlError(p, err)
					}
					res, err := deps.Nearest.FindNearest(p.Context, coord, radius, limit)
					if err != nil {
						return nil, gqlError(p, err)
					}
					return nearestView(res), nil
				},
			},
			"indexed": &graphql.Field{
				Type:        indexedType,
				Description: "Targets within a radius, using the spatial index",
				Args: pointArgs(graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				}),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					coord, radius, limit, err := gqlSearchArgs(p, deps.limits())
					if err != nil {
						return nil, gqlError(p, err)
					}
					res, err := deps.Indexed.QueryIndexed(p.Context, coord, radius)
					if err != nil {
						return nil, gqlError(p, err)
					}
					if len(res.WithinRadius) > limit {
						res.WithinRadius = res.WithinRadius[:limit]
					}
					return indexedView(res), nil
				},
			},
			"target": &graphql.Field{
				Type:        targetType,
				Description: "Get a target by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					t, err := deps.Targets.GetByID(p.Context, p.Args["id"].(string))
					if errors.Is(err, domain.ErrTargetNotFound) || (err == nil && t == nil) {
						return nil, nil
					}
					if err != nil {
						return nil, gqlError(p, err)
					}
					return targetView(*t), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func gqlRadius(p graphql.ResolveParams, limits Limits) (float64, error) {
	r, ok := p.Args["radius"].(float64)
	if !ok {
		return limits.DefaultRadiusMeters, nil
	}
	return checkRadius(r, limits)
}

func gqlSearchArgs(p graphql.ResolveParams, limits Limits) (domain.Coordinate, float64, int, error) {
	lat := p.Args["lat"].(float64)
	lon := p.Args["lon"].(float64)
	if err := domain.ValidateCoordinates(lat, lon); err != nil {
		return domain.Coordinate{}, 0, 0, err
	}
	radius, err := gqlRadius(p, limits)
	if err != nil {
		return domain.Coordinate{}, 0, 0, err
	}
	limit, _ := p.Args["limit"].(int)
	limit = clampLimit(limit, limits)
	return domain.Coordinate{Latitude: lat, Longitude: lon}, radius, limit, nil
}

// gqlError prefixes the error kind and hides internal details.
func gqlError(p graphql.ResolveParams, err error) error {
	_, _, kind, msg := classify(err)
	if kind == KindInternalComputation {
		logging.FromContext(p.Context).Error("graphql resolver failed", "field", p.Info.FieldName, "error", err)
	}
	return fmt.Errorf("%s: %s", kind, msg)
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
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		c.Set("Cache-Control", "no-store")
		return c.JSON(result)
	}
}
