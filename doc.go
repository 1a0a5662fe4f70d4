/*
Package dnspipe monitors sources of network addresses,
narrows them through chains of filters,
and keeps DNS records at a remote provider in sync with the result.

Sources and filters are wired together by small subscription expressions
such as

	nth(1, ipv6(my_interface))

which are resolved against a registry of named sources and filters by
[BuildProvider]. Each updater owns one DNS name at a registrar and any
number of subscriptions; [RunCycle] reconciles an updater once,
and [RunDaemon] does so on a fixed interval.

The dnspiped command in cmd/dnspiped is the daemon built from this package.
*/
package dnspipe
