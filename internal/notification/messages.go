package notification

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	keySubjectApproved = "membership.subject.approved"
	keySubjectRejected = "membership.subject.rejected"
	keyGreeting        = "membership.greeting"
	keyBodyApproved    = "membership.body.approved"
	keyBodyRejected    = "membership.body.rejected"
	keyRole            = "membership.role"
)

func init() {
	set := func(tag language.Tag, key, msg string) {
		if err := message.SetString(tag, key, msg); err != nil {
			panic(err)
		}
	}

	set(language.English, keySubjectApproved, "Your membership in %s was approved")
	set(language.English, keySubjectRejected, "Your membership in %s has ended")
	set(language.English, keyGreeting, "Hello %s,")
	set(language.English, keyBodyApproved, "Your request to join %s has been approved.")
	set(language.English, keyBodyRejected, "Your membership request for %s was declined or cancelled.")
	set(language.English, keyRole, "Your role: %s")

	set(language.Finnish, keySubjectApproved, "Jäsenyytesi organisaatiossa %s hyväksyttiin")
	set(language.Finnish, keySubjectRejected, "Jäsenyytesi organisaatiossa %s päättyi")
	set(language.Finnish, keyGreeting, "Hei %s,")
	set(language.Finnish, keyBodyApproved, "Pyyntösi liittyä organisaatioon %s on hyväksytty.")
	set(language.Finnish, keyBodyRejected, "Jäsenyyspyyntösi organisaatioon %s hylättiin tai peruttiin.")
	set(language.Finnish, keyRole, "Roolisi: %s")

	set(language.Swedish, keySubjectApproved, "Ditt medlemskap i %s har godkänts")
	set(language.Swedish, keySubjectRejected, "Ditt medlemskap i %s har avslutats")
	set(language.Swedish, keyGreeting, "Hej %s,")
	set(language.Swedish, keyBodyApproved, "Din begäran att gå med i %s har godkänts.")
	set(language.Swedish, keyBodyRejected, "Din medlemskapsbegäran för %s avslogs eller avbröts.")
	set(language.Swedish, keyRole, "Din roll: %s")
}
