// Package journal records every scheduler dispatch. A Journal observes the
// dispatcher, persists one model.Call per dispatch and fans it out to live
// subscribers through a Broker.
package journal
