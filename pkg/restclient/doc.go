// Usage:
//
//	client, err := restclient.New(restclient.Config{
//		BaseURL:        "https://catalog.example.org",
//		CredentialFile: "/etc/dynamo/client.pem",
//		MaxRetries:     3,
//	})
//	var sites []siteEntry
//	err = client.Request(ctx, "/sites", nil, restclient.MethodGET, restclient.EncodingURL, &sites)
//
// Options may be a map[string]string, a []restclient.Pair (for repeated
// keys), or a []string of "k=v" entries; Request normalizes all three.
package restclient
