package gamebridge

import (
	"strings"

	rankingevents "github.com/Black-And-White-Club/maprank/app/modules/ranking/events"
)

// Inbound subject suffixes published by the game server.
const (
	SubjectFinish             = "finish"
	SubjectMapBegin           = "map.begin"
	SubjectMapEnd             = "map.end"
	SubjectObserverConnect    = "observer.connect"
	SubjectObserverDisconnect = "observer.disconnect"
	SubjectResync             = "resync"

	outboundSegment = "out"
)

var inboundTopics = map[string]string{
	SubjectFinish:             rankingevents.FinishRecordedV1,
	SubjectMapBegin:           rankingevents.MapBeganV1,
	SubjectMapEnd:             rankingevents.MapEndedV1,
	SubjectObserverConnect:    rankingevents.ObserverConnectedV1,
	SubjectObserverDisconnect: rankingevents.ObserverDisconnectedV1,
	SubjectResync:             rankingevents.ResyncRequestedV1,
}

// InboundSubjects lists the full subjects the bridge consumes.
func InboundSubjects(prefix string) []string {
	out := make([]string, 0, len(inboundTopics))
	for _, suffix := range []string{SubjectFinish, SubjectMapBegin, SubjectMapEnd, SubjectObserverConnect, SubjectObserverDisconnect, SubjectResync} {
		out = append(out, prefix+"."+suffix)
	}
	return out
}

// TopicForSubject maps an inbound subject to its bus topic.
func TopicForSubject(prefix, subject string) (string, bool) {
	suffix, ok := strings.CutPrefix(subject, prefix+".")
	if !ok {
		return "", false
	}
	topic, ok := inboundTopics[suffix]
	return topic, ok
}

// OutboundSubject is where a bus topic is relayed. Observer-addressed
// messages get the observer id appended so game servers can filter.
func OutboundSubject(prefix, topic, observer string) string {
	subject := prefix + "." + outboundSegment + "." + topic
	if observer != "" {
		subject += "." + observer
	}
	return subject
}
