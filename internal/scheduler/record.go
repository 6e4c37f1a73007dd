package scheduler

import (
	"net/url"
	"time"

	"github.com/hamed0406/playlistchecker/internal/domain"
	"github.com/hamed0406/playlistchecker/internal/probe"
)

// NewRecord converts a probe result into its persisted form.
func NewRecord(runID domain.RunID, channelURL string, res *probe.Result, at time.Time) *domain.ProbeRecord {
	rec := &domain.ProbeRecord{
		RunID:           runID,
		ChannelURL:      channelURL,
		Host:            hostOf(channelURL),
		Passed:          res.Passed(),
		Reason:          string(res.Reason),
		Hops:            len(res.Downloads),
		DereferencedURL: res.DereferencedURL(),
		CheckedAt:       at,
	}
	if bps, ok := res.BytesPerSecond(); ok {
		rec.BytesPerSecond = &bps
	}
	return rec
}

// NewReport describes every hop of a probe.
func NewReport(channelURL string, res *probe.Result) domain.ProbeReport {
	rep := domain.ProbeReport{
		URL:             channelURL,
		Passed:          res.Passed(),
		Reason:          string(res.Reason),
		DereferencedURL: res.DereferencedURL(),
		Hops:            make([]domain.Hop, 0, len(res.Downloads)),
	}
	for _, d := range res.Downloads {
		h := domain.Hop{
			URL:         urlString(d.ReqURL),
			ResponseURL: urlString(d.RespURL),
			Status:      string(d.Status),
			Bytes:       d.ByteLength(),
			Text:        d.LooksLikeText(),
		}
		if d.StatusCode != 0 {
			code := d.StatusCode
			h.HTTPStatus = &code
		}
		if bps, ok := d.BytesPerSecond(); ok {
			h.BytesPerSecond = &bps
		}
		if d.Err != nil {
			h.Error = d.Err.Error()
		}
		rep.Hops = append(rep.Hops, h)
	}
	return rep
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}
