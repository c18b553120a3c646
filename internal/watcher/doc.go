// Package watcher watches the inbox directory for documents to index.
//
// fsnotify events for files accepted by the filter are debounced per path,
// so an editor's save or a slow copy produces one event, and are delivered
// in batches:
//
//	in, err := watcher.NewInbox(dir, watcher.Options{Filter: scraper.Supported})
//	if err != nil {
//	    return err
//	}
//	return in.Run(ctx, func(ctx context.Context, batch []watcher.FileEvent) {
//	    for _, ev := range batch {
//	        // index ev.Path
//	    }
//	})
package watcher
