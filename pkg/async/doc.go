// Package async fans work out over a bounded number of goroutines.
//
//	errs := async.Batch(ctx, companies, 4, time.Minute, func(ctx context.Context, c *companies.Company) error {
//		_, err := provisioner.Provision(ctx, c.ID, c.Slug)
//		return err
//	})
//
// Panics inside fn are recovered and reported as errors.
package async
