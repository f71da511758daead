/*
Package streaming copies file content to HTTP clients without letting a slow
or vanished client hold the file.

[StreamWithTimeout] wraps the response in a [TimeoutWriter] that

  - writes in chunks and flushes after each one,
  - gives every chunk its own connection write deadline (via
    http.ResponseController), and
  - stops as soon as the request context is done.

The caller owns the reader and closes it when StreamWithTimeout returns,
which happens promptly on disconnect:

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w.Header().Set("Content-Type", "video/mp4")
	_, err = streaming.StreamWithTimeout(r.Context(), w, f, streaming.DefaultTimeoutWriterConfig())
	if err != nil && !streaming.IsDisconnect(err) {
		logging.Warn("stream failed: %v", err)
	}

Response writers that cannot set deadlines, such as httptest recorders, are
streamed without them.
*/
package streaming
