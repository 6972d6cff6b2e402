// Kometa-AI - AI-Powered Collection Management for Radarr
// Copyright 2026 tikibozo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tikibozo/kometa-ai

// Package schedule parses run schedules and drives the periodic run loop.
//
// A schedule is an interval ("1h", "12h", "1d", "1w", "1mo") plus a
// wall-clock start time ("HH:MM") in a configurable zone. Activations
// land on start-time-anchored multiples of the interval, so a 6h
// schedule starting at 03:00 fires at 03:00, 09:00, 15:00 and 21:00
// regardless of when the process started.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	intervalRe = regexp.MustCompile(`^(\d+)(h|d|w|mo)$`)
	timeRe     = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// unitSeconds maps interval units to seconds. A month approximates to
// 30 days.
var unitSeconds = map[string]int64{
	"h":  3600,
	"d":  86400,
	"w":  604800,
	"mo": 2592000,
}

// ParseInterval converts an interval spec like "12h" or "1d" into a
// duration.
func ParseInterval(s string) (time.Duration, error) {
	m := intervalRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid interval %q: expected Xh, Xd, Xw or Xmo", s)
	}
	value, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid interval %q: value must be a positive integer", s)
	}
	return time.Duration(value*unitSeconds[m[2]]) * time.Second, nil
}

// ParseStartTime converts "HH:MM" into hour and minute components.
func ParseStartTime(s string) (hour, minute int, err error) {
	m := timeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid start time %q: expected HH:MM", s)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 {
		return 0, 0, fmt.Errorf("invalid start time %q: hour out of range", s)
	}
	if minute > 59 {
		return 0, 0, fmt.Errorf("invalid start time %q: minute out of range", s)
	}
	return hour, minute, nil
}

// Plan is a parsed, ready-to-evaluate schedule.
type Plan struct {
	Interval time.Duration
	Hour     int
	Minute   int
	Location *time.Location
}

// NewPlan parses the interval, start time and timezone specs. An empty
// timezone means UTC.
func NewPlan(interval, startTime, timezone string) (*Plan, error) {
	iv, err := ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	hour, minute, err := ParseStartTime(startTime)
	if err != nil {
		return nil, err
	}
	loc := time.UTC
	if timezone != "" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
	}
	return &Plan{Interval: iv, Hour: hour, Minute: minute, Location: loc}, nil
}

// epochYear anchors the activation grid so it is stable across process
// restarts.
const epochYear = 2020

// Next returns the earliest activation strictly after now. Activations
// are interval multiples from a fixed epoch at the start clock time, so
// the grid does not drift with process restarts.
//
// Day-and-larger intervals step in calendar days, keeping the start
// clock time stable across DST transitions.
func (p *Plan) Next(now time.Time) time.Time {
	local := now.In(p.Location)

	if p.Interval < 24*time.Hour {
		anchor := time.Date(local.Year(), local.Month(), local.Day(), p.Hour, p.Minute, 0, 0, p.Location)
		for anchor.After(now) {
			anchor = anchor.Add(-p.Interval)
		}
		for !anchor.After(now) {
			anchor = anchor.Add(p.Interval)
		}
		return anchor
	}

	days := int(p.Interval / (24 * time.Hour))
	epoch := time.Date(epochYear, time.January, 1, p.Hour, p.Minute, 0, 0, p.Location)
	elapsed := int(local.Sub(epoch).Hours() / 24)
	candidate := epoch.AddDate(0, 0, (elapsed/days)*days)
	for !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, days)
	}
	return candidate
}
