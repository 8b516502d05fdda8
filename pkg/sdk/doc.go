// Package fedsearch embeds the federated search service in a Go program.
//
// A Client runs the same orchestration as the HTTP API: searches fan out to
// the configured providers in the background, their results are stored
// per provider and mixed into ranked pages on read.
//
//	client, _ := fedsearch.New(ctx,
//	    fedsearch.WithValkey("localhost:6379", ""),
//	    fedsearch.WithProvider(fedsearch.ProviderInput{ID: "web", Connector: "https://search.example.com/api"}),
//	)
//	defer client.Close()
//
//	s, _ := client.Searches().Create(ctx, fedsearch.SearchInput{Query: "rust vs go"})
//	page, _ := client.Searches().Results(ctx, s.ID, fedsearch.ResultsOptions{Page: 1})
//
// Run executes a query synchronously and returns the first page:
//
//	page, _ := client.Searches().Run(ctx, fedsearch.SearchInput{Query: "rust vs go"}, fedsearch.ResultsOptions{})
package fedsearch
