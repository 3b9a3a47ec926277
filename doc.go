// Package blobstart is a quickstart for cloud object storage: it creates a
// container if absent and drives an interactive session that uploads, lists,
// downloads and deletes blobs.
//
// The storage work itself is done by a collaborator implementing Container.
// The repository ships three of them:
//
//   - azure: Azure Blob Storage via the azblob SDK (shared key or azidentity)
//   - s3: any S3-compatible service via minio-go
//   - filesystem: a local directory, for offline demos and tests
//
// # Example Usage
//
//	c, err := azure.New(azure.Config{
//	    AccountName: os.Getenv("AZURE_STORAGE_ACCOUNT"),
//	    AccountKey:  os.Getenv("AZURE_STORAGE_ACCESS_KEY"),
//	}, "mycontainer")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	created, err := session.Bootstrap(ctx, c, formatter, os.Stdout)
//
// See the session package for the command loop and the config package for
// how the session configuration is resolved.
package blobstart
