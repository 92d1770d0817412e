package midistore

// DedupRecords collapses records sharing an id to a single survivor: the
// one with the earliest CreatedAt. Duplicates arise from concurrent or
// retried writes against the serialized record slot; the first successful
// publish is authoritative and later copies are write artifacts, not
// updates. The survivor keeps the position of the id's first occurrence,
// and the pass is idempotent.
func DedupRecords(records []*Record) []*Record {
	out := make([]*Record, 0, len(records))
	index := make(map[string]int, len(records))

	for _, rec := range records {
		at, seen := index[rec.ID]
		if !seen {
			index[rec.ID] = len(out)
			out = append(out, rec)
			continue
		}
		if rec.CreatedAt.Before(out[at].CreatedAt) {
			out[at] = rec
		}
	}

	return out
}
