// Package session implements the interactive blobstart session: container
// bootstrap, the single-letter command loop and the recursive upload helper.
//
// A session is driven by one goroutine. Commands run to completion before the
// next prompt; the only fan-out is the bounded download inside Get.
//
//	s, err := session.New(cfg, container,
//		session.WithFormatter(session.NewFormatter(jsonOutput)))
//	if err != nil {
//		return err
//	}
//	return s.Run(ctx)
//
// Run bootstraps the container before showing the menu. Bootstrap can also be
// called on its own.
package session
