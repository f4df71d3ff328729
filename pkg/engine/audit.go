// Copyright 2021 Juan Pablo Tosso
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ConcurrentLogger is the audit-log writer, adapted from the teacher's
// flat-file implementation: one append-only CLF-style index line per
// transaction plus a per-transaction JSON detail file, guarded by a single
// RWMutex the way the teacher guards its *log.Logger.
type ConcurrentLogger struct {
	auditlogger *log.Logger
	mux         sync.RWMutex
	file        string
	directory   string
}

// Init opens (creating if needed) the audit index file.
func (l *ConcurrentLogger) Init(file string, directory string) error {
	faudit, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	mw := io.MultiWriter(faudit)
	l.auditlogger = log.New()
	l.auditlogger.SetOutput(mw)
	l.auditlogger.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	l.file = file
	l.directory = directory
	return nil
}

// auditRecord is the JSON detail file written alongside the CLF index
// line, one per logged transaction.
type auditRecord struct {
	ID             string       `json:"id"`
	Timestamp      int64        `json:"timestamp"`
	RemoteAddr     string       `json:"remote_addr"`
	RequestLine    string       `json:"request_line"`
	ResponseStatus int          `json:"response_status"`
	MatchedRules   []ruleRecord `json:"matched_rules"`
}

type ruleRecord struct {
	ID  int64  `json:"id"`
	Msg string `json:"msg"`
}

// WriteAudit appends one CLF-style index line and writes the transaction's
// JSON detail file, matching the teacher's WriteAudit shape.
func (l *ConcurrentLogger) WriteAudit(tx *Transaction, matched []*Rule) error {
	l.mux.Lock()
	defer l.mux.Unlock()

	t := time.Unix(0, tx.Timestamp)
	ts := t.Format("02/Jan/2006:15:04:05 -0700")

	ipsource := tx.GetCollection("remote_addr").GetFirstString("")
	requestline := tx.GetCollection("request_line").GetFirstString("")
	responsecode := tx.GetCollection("response_status").GetFirstInt("")
	responselength := tx.GetCollection("response_content_length").GetFirstInt64("")
	requestlength := tx.GetCollection("request_body_length").GetFirstInt64("")

	logdir := l.directory
	fname := tx.Id + ".json"
	filepath := path.Join(logdir, fname)

	str := fmt.Sprintf("%s - - [%s] %q %d %d %q %q %s %q %s 0 %d",
		ipsource, ts, requestline, responsecode, responselength, "-", "-", tx.Id, "-", filepath, requestlength)

	if err := os.MkdirAll(logdir, 0777); err != nil {
		return err
	}

	rec := auditRecord{
		ID: tx.Id, Timestamp: tx.Timestamp, RemoteAddr: ipsource,
		RequestLine: requestline, ResponseStatus: responsecode,
	}
	for _, r := range matched {
		rec.MatchedRules = append(rec.MatchedRules, ruleRecord{ID: r.Id, Msg: r.Msg})
	}
	jsdata, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath, jsdata, 0600); err != nil {
		return err
	}
	l.auditlogger.Print(str)
	return nil
}
