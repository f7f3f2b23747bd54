package pipeline

// reconcile computes the next warning set.
//
// urls is the deduplicated URL list of the current text. outcomes holds the
// reachability known for this run: URLs probed by it, and throttled URLs
// whose last completed probe is on record. URLs missing from outcomes keep
// whatever state prev had for them. URLs not in urls are dropped.
//
// The result is ordered like urls and never nil.
func reconcile(prev WarningSet, urls []string, outcomes map[string]bool, message MessageFunc) WarningSet {
	existing := make(map[string]Warning, len(prev))
	for _, w := range prev {
		existing[w.URL] = w
	}

	next := make(WarningSet, 0, len(urls))
	for _, url := range urls {
		w, had := existing[url]

		reachable, probed := outcomes[url]
		switch {
		case probed && reachable:
			continue
		case probed && !reachable:
			if !had {
				w = Warning{URL: url, Message: message(url)}
			}
		case !had:
			continue
		}
		next = append(next, w)
	}

	return next
}
