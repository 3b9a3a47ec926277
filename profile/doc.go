// Package profile manages named storage account profiles saved in a YAML file
// (~/.blobstart/config.yaml by default).
//
// A profile bundles the backend, account name, account key and endpoint so a
// session can be started with --profile instead of exporting environment
// variables:
//
//	file, err := profile.Load(profile.DefaultPath())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	p, err := file.GetProfile("dev")
package profile
