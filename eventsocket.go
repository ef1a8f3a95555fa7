// Package eventsocket turns a callback-driven WebSocket connection into a
// typed, observable event stream.
//
// A [Conn] owns at most one underlying socket. Transport callbacks are
// republished as [Event] values on a multicast bus; one-shot operations
// ([Conn.Connect], [Conn.Send], [Conn.Disconnect]) block until their outcome
// arrives, while [Conn.Listen] exposes the ongoing sequence of received
// messages.
//
// # Thread Safety
//
// [Conn] is safe for concurrent use by multiple goroutines. Open, send and
// close actions against the socket are serialized per Conn. A [Stream] should
// only be consumed by a single goroutine.
//
// # Basic Usage
//
//	ctx := context.Background()
//
//	conn, err := eventsocket.NewBuilder().
//	    AddConverterFactory(jsonconv.New()).
//	    AddReceiveInterceptor(eventsocket.InterceptorFunc(strings.TrimSpace)).
//	    Build(nil, "wss://example.com/ws")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if _, err := conn.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	messages := conn.Listen()
//	defer messages.Close()
//
//	if _, err := conn.Send(ctx, Greeting{Text: "hello"}); err != nil {
//	    log.Fatal(err)
//	}
//
//	for msg, err := range messages.All(ctx) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    reply, err := eventsocket.Data[Reply](msg)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(reply.Text)
//	}
//
// # Delivery
//
// The bus keeps no replay buffer. An event published while nobody is
// subscribed is dropped, and a new subscription only sees events published
// after it was created. A caller-initiated [Conn.Disconnect] completes every
// stream; any other closure or transport failure ends every stream with an
// error. A Conn is not reusable after that: build a new one to reconnect.
//
// # Observability
//
// Use [WithLogger], [WithOnSend], and [WithOnEvent] to add logging and
// monitoring:
//
//	conn, err := eventsocket.NewBuilder().Build(nil, url,
//	    eventsocket.WithLogger(slog.Default()),
//	    eventsocket.WithOnEvent(func(ev eventsocket.Event) {
//	        metrics.EventsSeen.Inc()
//	    }),
//	)
package eventsocket
