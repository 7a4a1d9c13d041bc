package h5mbl

// Close finalizes a Merger after Run returns or after a cancellation:
// if WithStageInTemp was set and a file is still staged under /tmp, it
// is moved into its final destination so a partial merge is never left
// orphaned outside TargetDir.
func (m *Merger) Close() error {
	if m == nil {
		return nil
	}
	return m.driver.Cleanup()
}
