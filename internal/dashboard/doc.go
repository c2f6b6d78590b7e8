// Package dashboard builds and drives the panels of the device dashboard.
//
// The Controller creates one panel per device descriptor, routes emulated
// topic notifications to the panels that depend on them, and keeps the
// panels' online flags in step with the emulator's connectivity events.
// Every connect event re-subscribes all panel topics, because the emulator
// clears its subscriptions on disconnect.
//
// Room and type filters only hide panels; they never rebuild them.
//
// Example:
//
//	em := pubsub.New(client, pubsub.WithPollInterval(5*time.Second))
//	ctrl := dashboard.New(em, client,
//	    dashboard.WithStatusSource(client),
//	    dashboard.WithNotifier(func(n dashboard.Notification) { fmt.Println(n.Message) }),
//	)
//	if err := ctrl.Load(ctx); err != nil {
//	    return err
//	}
//	if err := ctrl.Start(ctx); err != nil {
//	    return err
//	}
//	defer ctrl.Stop()
package dashboard
