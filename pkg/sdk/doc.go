// Package routedex embeds the route catalog engine in a Go program: schema-driven
// CRUD over stations, routes and trips in PostgreSQL (or memory), asynchronously
// mirrored into a Valkey, Redis or Elasticsearch search index.
//
// Writes return once the primary store commits. The index converges shortly
// after; use WaitIndexed when a test or a caller needs to observe it.
//
//	client, _ := routedex.New(ctx,
//	    routedex.WithPostgres("postgres://localhost/routedex"),
//	    routedex.WithValkey("localhost:6379", ""),
//	)
//	defer client.Close(ctx)
//
//	routes, _ := client.Entity("route")
//	r, _ := routes.Create(ctx, map[string]any{"routeCode": "HN-HP", "transportType": "BUS", ...})
//	_ = routes.WaitIndexed(ctx, r.ID, routedex.IndexPresent, 5*time.Second)
//
//	page, _ := routes.List(ctx,
//	    routedex.Where("distanceKm").GreaterThan(100).And(routedex.Where("basePrice").LessThan(50)),
//	    routedex.Page{Size: 20, Sort: []string{"basePrice,asc"}},
//	)
//	hits, _ := routes.Search(ctx, "routeCode:HN-HP", routedex.Page{})
package routedex
