// Package relay sends an agent's outbound HTTP traffic: paid requests and
// sensor readings.
//
// Responses are returned as raw bytes. Non-2xx statuses become *StatusError
// with the body untouched; a 402 carries the server's payment challenge in
// its headers.
//
//	r := relay.New(agentDID, ks.KeyPair("device"), relay.WithRateLimit(2, 4))
//	body, err := r.Pay(ctx, url, auth, nil)
//	var se *relay.StatusError
//	if errors.As(err, &se) && se.PaymentRequired() {
//	    log.Println("server wants", se.Header.Get(relay.HeaderPaymentAmount))
//	}
package relay
